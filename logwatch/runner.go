package logwatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// RunnerConfig wires one agent invocation.
type RunnerConfig struct {
	// ConfDir holds logwatch.cfg and logwatch.d/; RulesFile overrides both.
	ConfDir   string
	VarDir    string
	RulesFile string
	// StateFile overrides the remote-derived default under VarDir.
	StateFile string
	// Remote identifies the querying host; it selects the state file and
	// the batch directory.
	Remote string

	Debug   bool // errors become fatal, state is not persisted
	NoState bool // state is not persisted
	Flush   bool // delete all retained batches after emitting

	// ForwardAddr enables event console forwarding when non-empty.
	ForwardAddr    string
	ForwardJournal string
	ForwardTimeout time.Duration

	Out    io.Writer
	Now    func() time.Time
	TTY    bool
	Logger log.Logger
}

// Runner executes one-shot scans: read state, do bounded work, emit one
// batch, write state.
type Runner struct {
	cfg       RunnerConfig
	rc        RunContext
	forwarder *Forwarder
}

type runStats struct {
	Sections      int
	Missing       int
	LinesEmitted  int
	BatchesResent int
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.ConfDir == "" {
		cfg.ConfDir = "."
	}
	if cfg.VarDir == "" {
		cfg.VarDir = "."
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Remote == "" {
		cfg.Remote = DetectRemote(cfg.TTY)
	}

	r := &Runner{
		cfg: cfg,
		rc: RunContext{
			Out:    cfg.Out,
			Now:    cfg.Now,
			TTY:    cfg.TTY,
			Debug:  cfg.Debug,
			Logger: cfg.Logger,
		},
	}

	if cfg.ForwardAddr != "" {
		journal := cfg.ForwardJournal
		if journal == "" {
			journal = filepath.Join(cfg.VarDir, "logwatch-forward.db")
		}
		fw, err := NewForwarder(journal, cfg.ForwardAddr, cfg.Remote, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("open forward journal: %w", err)
		}
		r.forwarder = fw
	}
	return r, nil
}

func (r *Runner) Close() error {
	if r.forwarder == nil {
		return nil
	}
	return r.forwarder.Close()
}

// DetectRemote mirrors how the agent invokes plugins: the querying host is
// exported in the environment, a tty means a local test run.
func DetectRemote(tty bool) string {
	for _, key := range []string{"REMOTE", "REMOTE_ADDR"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if tty {
		return "local"
	}
	return "remote-unknown"
}

func statusFilename(varDir, remote string) string {
	return filepath.Join(varDir, "logwatch.state."+strings.ReplaceAll(remote, ":", "_"))
}

// migrateLegacyState seeds a remote-specific state file from the plain
// logwatch.state of older versions, once.
func migrateLegacyState(stateFile, varDir string) {
	if _, err := os.Stat(stateFile); err == nil {
		return
	}
	legacy := filepath.Join(varDir, "logwatch.state")
	if legacy == stateFile {
		return
	}
	content, err := os.ReadFile(legacy)
	if err != nil {
		return
	}
	_ = os.WriteFile(stateFile, content, 0o644)
}

// RunOnce performs one full scan cycle. Whatever happens, at least the
// section banner is written to the output stream.
func (r *Runner) RunOnce() error {
	now := r.rc.Now()
	batchID := NewBatchID(now)
	stats := runStats{}

	var output []string
	rulePaths := RuleFilePaths(r.cfg.ConfDir, r.cfg.RulesFile)
	rawLines := ReadRuleLines(rulePaths, func(msg string) {
		output = append(output, msg)
	})

	globalOpts, blocks, err := ParseRules(rawLines)
	if err != nil {
		if r.cfg.Debug {
			return err
		}
		fmt.Fprintf(r.rc.Out, "%s%s%v\n", sectionBanner, ConfigErrorPrefix, err)
		return err
	}
	if r.cfg.Debug && len(blocks) == 0 {
		return fmt.Errorf("no content in config files: %s", strings.Join(rulePaths, ", "))
	}

	stateFile := r.cfg.StateFile
	if stateFile == "" {
		stateFile = statusFilename(r.cfg.VarDir, r.cfg.Remote)
		migrateLegacyState(stateFile, r.cfg.VarDir)
	}

	state := NewState(stateFile, r.cfg.Logger)
	if err := state.Read(); err != nil {
		// A corrupt state file must not take monitoring down: continue with
		// an empty state and risk re-sending a few lines.
		if r.cfg.Debug {
			return fmt.Errorf("read state: %w", err)
		}
		r.cfg.Logger.Warn().Err(err).Str("state_file", stateFile).Msg("cannot read state")
	}

	sections, missing, configErrors := ParseSections(blocks)
	if r.cfg.Debug && len(configErrors) > 0 {
		return fmt.Errorf("%s", strings.TrimSpace(configErrors[0]))
	}
	output = append(output, configErrors...)
	for _, pattern := range missing {
		output = append(output, fmt.Sprintf("[[[%s:missing]]]\n", pattern))
	}
	stats.Missing = len(missing)

	for _, section := range sections {
		fstate := state.Get(section.Path)
		header, lines, err := processLogfile(section, fstate, &r.rc)
		if err != nil {
			if r.cfg.Debug {
				return fmt.Errorf("process %s: %w", section.Path, err)
			}
			// One section's failure must not suppress the others.
			r.cfg.Logger.Warn().Err(err).Str("logfile", section.Path).Msg("skipping section")
			continue
		}
		filtered := FilterOutput(lines, &section.Options, r.rc.TTY)

		output = append(output, header, "BATCH: "+batchID+"\n")
		output = append(output, filtered...)
		stats.Sections++
		stats.LinesEmitted += len(filtered)
	}

	store := NewBatchStore(r.cfg.VarDir, r.cfg.Remote)
	retention := time.Duration(globalOpts.RetentionPeriod) * time.Second
	resent, err := store.Emit(r.rc.Out, output, batchID, retention, now)
	if err != nil {
		return fmt.Errorf("emit batches: %w", err)
	}
	stats.BatchesResent = resent

	if r.cfg.Flush {
		if err := store.Flush(); err != nil {
			return fmt.Errorf("flush batches: %w", err)
		}
	}

	if r.forwarder != nil {
		if err := r.forwarder.ForwardBatch(batchID, output, r.cfg.ForwardTimeout); err != nil {
			r.cfg.Logger.Warn().Err(err).Msg("forwarding batch failed")
		}
		if err := r.forwarder.ResendPending(r.cfg.ForwardTimeout); err != nil {
			r.cfg.Logger.Warn().Err(err).Msg("resending pending messages failed")
		}
	}

	if r.cfg.Debug {
		r.cfg.Logger.Debug().Msg("state file not written (debug mode)")
	} else if !r.cfg.NoState {
		if err := state.Write(); err != nil {
			return fmt.Errorf("write state: %w", err)
		}
	}

	r.cfg.Logger.Debug().
		Int("sections", stats.Sections).
		Int("missing", stats.Missing).
		Int("lines", stats.LinesEmitted).
		Int("batches_resent", stats.BatchesResent).
		Dur("elapsed", r.rc.Now().Sub(now)).
		Msg("run complete")
	return nil
}
