package logwatch

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ForwardConfig enables event console forwarding when Addr is set.
type ForwardConfig struct {
	Addr           string `yaml:"addr"`
	Journal        string `yaml:"journal"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FileConfig is the optional agent-level YAML configuration. Rule files
// (logwatch.cfg) are separate; this only covers runtime wiring.
type FileConfig struct {
	ConfDir   string `yaml:"conf_dir"`
	VarDir    string `yaml:"var_dir"`
	RulesFile string `yaml:"rules_file"`
	StateFile string `yaml:"state_file"`
	Debug     bool   `yaml:"debug"`

	Forward ForwardConfig `yaml:"forward"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
