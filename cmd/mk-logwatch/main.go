package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"

	"logwatch-agent/logwatch"
)

func envOr(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

func main() {
	var configPath string
	var rulesFile string
	var confDir string
	var varDir string
	var stateFile string
	var debug bool
	var noState bool
	var flush bool
	var verbose bool
	var forwardAddr string
	var forwardJournal string
	var forwardTimeout time.Duration

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&rulesFile, "c", "", "Use this rule file instead of logwatch.cfg + logwatch.d/*.cfg.")
	flag.StringVar(&confDir, "conf-dir", "", "Directory holding logwatch.cfg (default $MK_CONFDIR).")
	flag.StringVar(&varDir, "var-dir", "", "Directory for state and batch files (default $MK_VARDIR).")
	flag.StringVar(&stateFile, "state-file", "", "Explicit state file path (overrides the remote-derived default).")
	flag.BoolVar(&debug, "d", false, "Debug mode: errors are fatal, no state is saved.")
	flag.BoolVar(&noState, "no-state", false, "Do not save state.")
	flag.BoolVar(&flush, "flush", false, "Delete all retained batches after emitting.")
	flag.BoolVar(&verbose, "v", false, "Verbose diagnostics on stderr.")
	flag.StringVar(&forwardAddr, "forward-addr", "", "Event console syslog address (tcp); enables forwarding.")
	flag.StringVar(&forwardJournal, "journal", "", "Forward delivery journal path (sqlite).")
	flag.DurationVar(&forwardTimeout, "forward-timeout", 3*time.Second, "Per-message forward send timeout.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	// Base config from file (optional), CLI flags win.
	fileCfg := &logwatch.FileConfig{}
	if configPath != "" {
		cfg, err := logwatch.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(2)
		}
		fileCfg = cfg
	}

	finalConfDir := fileCfg.ConfDir
	if finalConfDir == "" {
		finalConfDir = envOr(".", "LOGWATCH_DIR", "MK_CONFDIR")
	}
	if visited["conf-dir"] {
		finalConfDir = confDir
	}
	finalVarDir := fileCfg.VarDir
	if finalVarDir == "" {
		finalVarDir = envOr(".", "LOGWATCH_DIR", "MK_VARDIR", "MK_STATEDIR")
	}
	if visited["var-dir"] {
		finalVarDir = varDir
	}
	finalRules := fileCfg.RulesFile
	if visited["c"] {
		finalRules = rulesFile
	}
	finalState := fileCfg.StateFile
	if visited["state-file"] {
		finalState = stateFile
	}
	finalDebug := fileCfg.Debug
	if visited["d"] {
		finalDebug = debug
	}
	finalForwardAddr := fileCfg.Forward.Addr
	if visited["forward-addr"] {
		finalForwardAddr = forwardAddr
	}
	finalJournal := fileCfg.Forward.Journal
	if visited["journal"] {
		finalJournal = forwardJournal
	}
	finalForwardTimeout := forwardTimeout
	if !visited["forward-timeout"] && fileCfg.Forward.TimeoutSeconds > 0 {
		finalForwardTimeout = time.Duration(fileCfg.Forward.TimeoutSeconds) * time.Second
	}

	level := log.WarnLevel
	if verbose {
		level = log.InfoLevel
	}
	if finalDebug {
		level = log.DebugLevel
	}
	logger := log.Logger{
		Level:  level,
		Writer: &log.ConsoleWriter{ColorOutput: isatty.IsTerminal(os.Stderr.Fd())},
	}

	tty := isatty.IsTerminal(os.Stdout.Fd())

	runner, err := logwatch.NewRunner(logwatch.RunnerConfig{
		ConfDir:        finalConfDir,
		VarDir:         finalVarDir,
		RulesFile:      finalRules,
		StateFile:      finalState,
		Debug:          finalDebug,
		NoState:        noState,
		Flush:          flush,
		ForwardAddr:    finalForwardAddr,
		ForwardJournal: finalJournal,
		ForwardTimeout: finalForwardTimeout,
		Out:            os.Stdout,
		TTY:            tty,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(2)
	}
	defer runner.Close()

	if err := runner.RunOnce(); err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
