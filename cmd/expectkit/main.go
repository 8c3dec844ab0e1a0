package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"expectkit/internal/config"
	"expectkit/internal/expect"
	"expectkit/internal/logging"
	"expectkit/internal/store"
)

// errFailed signals a non-zero exit whose explanation was already printed.
var errFailed = errors.New("checks failed")

const defaultConfigPath = ".expectkit.yaml"

// app carries state shared by the subcommands of one invocation.
type app struct {
	// Flags
	configPath  string
	historyPath string
	format      string
	theme       string
	verbose     bool

	cfg     *config.Config
	inst    *expect.Instance
	history *store.HistoryStore
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "expectkit",
		Short: "Run assertions over YAML fixtures",
		Long: `expectkit evaluates natural-language assertions against values decoded
from YAML files and explains failures with structural diffs.

Examples:
  expectkit check subject.yaml "to satisfy" spec.yaml
  expectkit suite checks.yaml --history runs.db
  expectkit diff before.yaml after.yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "Config file")
	pf.StringVar(&a.historyPath, "history", "", "Record runs into this SQLite database")
	pf.StringVar(&a.format, "format", "", "Output format (text, ansi)")
	pf.StringVar(&a.theme, "theme", "", "Color theme for ansi output")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newCheckCmd(a),
		newSuiteCmd(a),
		newDiffCmd(a),
		newSignaturesCmd(a),
		newHistoryCmd(a),
	)
	return root, a
}

// setup loads configuration, starts logging and builds the instance.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = a.format
	}
	if flags.Changed("theme") {
		cfg.Output.Theme = a.theme
	}
	if flags.Changed("history") {
		cfg.History.Path = a.historyPath
	}
	if a.verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
		return err
	}

	a.cfg = cfg
	a.inst = expect.New(expect.WithConfig(cfg))
	if cfg.Output.Format == "ansi" {
		if _, err := a.inst.Theme(cfg.Output.Theme); err != nil {
			return err
		}
	}
	logging.CLI("%s started (instance=%s, format=%s)", cmd.CommandPath(), a.inst.ID(), cfg.Output.Format)
	return nil
}

// themeName is the theme used for rendering, empty for plain text.
func (a *app) themeName() string {
	if a.cfg == nil || a.cfg.Output.Format != "ansi" {
		return ""
	}
	return a.cfg.Output.Theme
}

// historyStore opens the configured history database on first use. It
// returns nil when recording is disabled.
func (a *app) historyStore() (*store.HistoryStore, error) {
	if a.history != nil || a.cfg == nil || a.cfg.History.Path == "" {
		return a.history, nil
	}
	s, err := store.Open(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.history = s
	return s, nil
}

// record stores run when history is enabled. Recording problems are
// logged, never fatal.
func (a *app) record(ctx context.Context, run *store.Run) {
	s, err := a.historyStore()
	if err != nil {
		logging.Get(logging.CategoryCLI).Warn("history unavailable: %v", err)
		return
	}
	if s == nil {
		return
	}
	if err := s.Record(ctx, run); err != nil {
		logging.Get(logging.CategoryCLI).Warn("failed to record run %s: %v", run.ID, err)
	}
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logging.Get(logging.CategoryCLI).Warn("failed to close history: %v", err)
		}
		a.history = nil
	}
	logging.Sync()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
