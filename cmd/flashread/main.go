// Package main provides the CLI entrypoint for flashread.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/flashread/internal/config"
	"github.com/verte-zerg/flashread/internal/engine"
	"github.com/verte-zerg/flashread/internal/logging"
	"github.com/verte-zerg/flashread/internal/model"
	"github.com/verte-zerg/flashread/internal/pacing"
	"github.com/verte-zerg/flashread/internal/session"
	"github.com/verte-zerg/flashread/internal/store"
	"github.com/verte-zerg/flashread/internal/text"
	"github.com/verte-zerg/flashread/internal/tui"
	"github.com/verte-zerg/flashread/internal/watch"
)

const (
	defaultTickMs     = 200
	defaultAutosaveMs = 1000
)

var errNoText = errors.New("no text to read: pass a file, pipe text on stdin, or use --clipboard")

var (
	readWPM        int
	readSmart      bool
	readMinDelayMs int
	readWatch      bool
	readClipboard  bool
	readFresh      bool
	readPlain      bool
	readDebug      bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flashread [file|-]",
		Short:         "Read text one word at a time",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runReadCmd,
	}

	rootCmd.Flags().IntVar(&readWPM, "wpm", pacing.DefaultWPM, fmt.Sprintf("reading speed in words per minute (%d-%d)", pacing.MinWPM, pacing.MaxWPM))
	rootCmd.Flags().BoolVar(&readSmart, "smart", false, "scale display time by word length")
	rootCmd.Flags().IntVar(&readMinDelayMs, "min-delay-ms", int(pacing.DefaultMinDelay/time.Millisecond), "shortest display time per word with --smart")
	rootCmd.Flags().BoolVar(&readWatch, "watch", false, "reload the file when it changes")
	rootCmd.Flags().BoolVar(&readClipboard, "clipboard", false, "read the clipboard contents")
	rootCmd.Flags().BoolVar(&readFresh, "fresh", false, "ignore the saved session and start from the first word")
	rootCmd.Flags().BoolVar(&readPlain, "plain", false, "print words as lines instead of the full-screen reader")
	rootCmd.PersistentFlags().BoolVar(&readDebug, "debug", false, "write debug logs")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newEstimateCmd())

	return rootCmd
}

// textSource is the text being read and where it came from.
type textSource struct {
	label string
	text  string
	// path is set for files, which are the only sources that can be watched.
	path string
}

func runReadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadReaderConfig(cmd)
	if err != nil {
		return err
	}

	env := loadEnv()
	logger, closeLog := openLogger(env)
	defer closeLog()

	persist := openPersistence(env, logger, session.WithAutosaveInterval(cfg.AutosavePeriod))
	defer persist.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	snap, saved := persist.sessions.Load(ctx)
	src, err := resolveSource(args, snap, saved)
	if err != nil {
		return err
	}
	if cfg.Watch && src.path == "" {
		return fmt.Errorf("--watch needs a file argument")
	}
	persist.sessions.SetSource(src.label)
	resume := !readFresh && saved && snap.SourceText == src.text
	logger.Info("reading", "source", src.label, "resume", resume)

	var watcher *watch.Watcher
	if cfg.Watch {
		watcher, err = watch.New(src.path, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := watcher.Close(); cerr != nil {
				// Best-effort watcher close.
				_ = cerr
			}
		}()
	}

	plain := readPlain || !term.IsTerminal(int(os.Stdout.Fd()))
	if plain {
		return runPlain(ctx, cmd.OutOrStdout(), plainOptions{
			cmd:      cmd,
			cfg:      cfg,
			src:      src,
			snap:     snap,
			resume:   resume,
			persist:  persist,
			watcher:  watcher,
			logger:   logger,
			stopDone: watcher == nil,
		})
	}

	bridge := tui.NewBridge(tui.DefaultBridgeSize)
	eng := newEngine(cmd, cfg, src, snap, resume, logger, engine.WithObserver(bridge.Observe))
	m := tui.NewModel(tui.Options{
		Engine:   eng,
		Bridge:   bridge,
		Sessions: persist.sessions,
		Runs:     persist.runs,
		Watcher:  watcher,
		Reload:   reloadFunc(src),
		Source:   src.label,
		Config:   cfg,
		Logger:   logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	m.Close()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if dropped := bridge.Dropped(); dropped > 0 {
		logger.Debug("engine events dropped", "count", dropped)
	}
	return nil
}

func loadReaderConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	tickMs := defaultTickMs
	autosaveMs := defaultAutosaveMs
	applyIntConfig(cmd, "wpm", &readWPM, fileCfg.Reader.WPM)
	applyBoolConfig(cmd, "smart", &readSmart, fileCfg.Reader.Smart)
	applyBoolConfig(cmd, "watch", &readWatch, fileCfg.Reader.Watch)
	applyIntConfig(cmd, "min-delay-ms", &readMinDelayMs, fileCfg.Pacing.MinDelayMs)
	if fileCfg.Reader.TickMs != nil {
		tickMs = *fileCfg.Reader.TickMs
	}
	if fileCfg.Reader.AutosaveMs != nil {
		autosaveMs = *fileCfg.Reader.AutosaveMs
	}

	pacingCfg := fileCfg.ApplyPacing(pacing.DefaultConfig())
	pacingCfg.MinDelay = time.Duration(readMinDelayMs) * time.Millisecond

	cfg := model.Config{
		WPM:            pacing.ClampWPM(readWPM),
		SmartReading:   readSmart,
		Pacing:         pacingCfg,
		Tick:           time.Duration(tickMs) * time.Millisecond,
		AutosavePeriod: time.Duration(autosaveMs) * time.Millisecond,
		Watch:          readWatch,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func loadEnv() config.Env {
	env, err := config.LoadEnv()
	if err != nil {
		logErrf("%v\n", err)
	}
	return env
}

func openLogger(env config.Env) (*log.Logger, func()) {
	logger, closeFn, err := logging.Open(env.LogPath(), readDebug || env.Debug)
	if err != nil {
		logErrf("logging disabled: %v\n", err)
		return logging.Discard(), func() {}
	}
	return logger, func() {
		if cerr := closeFn(); cerr != nil {
			// Best-effort log close.
			_ = cerr
		}
	}
}

// persistence holds the storage collaborators. Without a database the
// session lives in memory and runs are not recorded.
type persistence struct {
	store    *store.Store
	sessions *session.Manager
	runs     tui.RunRecorder
}

func openPersistence(env config.Env, logger *log.Logger, opts ...session.ManagerOption) persistence {
	opts = append(opts, session.WithLogger(logger))
	st, err := store.Open(env.DatabasePath())
	if err != nil {
		logErrf("history disabled: failed to open db: %v\n", err)
		logger.Error("failed to open db", "error", err)
		return persistence{sessions: session.NewManager(session.NewMemoryKV(), opts...)}
	}
	return persistence{store: st, sessions: session.NewManager(st, opts...), runs: st}
}

func (p persistence) close() {
	if p.store == nil {
		return
	}
	if cerr := p.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// resolveSource picks the text to read: an explicit file or "-", piped
// stdin, the clipboard, and finally the saved session.
func resolveSource(args []string, snap session.Snapshot, saved bool) (textSource, error) {
	if len(args) == 1 && args[0] != "-" {
		content, err := text.LoadFile(args[0])
		if err != nil {
			return textSource{}, err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return textSource{}, fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		return textSource{label: filepath.Base(path), text: content, path: path}, nil
	}
	piped, err := stdinIsPipe()
	if err != nil {
		return textSource{}, err
	}
	if (len(args) == 1 && args[0] == "-") || piped {
		content, err := text.Read(os.Stdin)
		if err != nil {
			return textSource{}, err
		}
		return textSource{label: "stdin", text: content}, nil
	}
	if readClipboard {
		content, err := clipboard.ReadAll()
		if err != nil {
			return textSource{}, fmt.Errorf("failed to read clipboard: %w", err)
		}
		return textSource{label: "clipboard", text: content}, nil
	}
	if saved && !readFresh && snap.SourceText != "" {
		return textSource{label: snap.Source, text: snap.SourceText}, nil
	}
	return textSource{}, errNoText
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func reloadFunc(src textSource) func() (string, error) {
	if src.path == "" {
		return nil
	}
	return func() (string, error) {
		return text.LoadFile(src.path)
	}
}

// newEngine builds the engine for src, resuming from snap when asked.
// Flags given on the command line win over the saved speed settings.
func newEngine(cmd *cobra.Command, cfg model.Config, src textSource, snap session.Snapshot, resume bool, logger *log.Logger, extra ...engine.Option) *engine.Engine {
	opts := []engine.Option{
		engine.WithWPM(float64(cfg.WPM)),
		engine.WithSmartReading(cfg.SmartReading),
		engine.WithPacing(cfg.Pacing),
		engine.WithLogger(logger),
	}
	opts = append(opts, extra...)
	if !resume {
		eng := engine.New(opts...)
		eng.Load(src.text)
		return eng
	}
	eng := session.Restore(snap, opts...)
	if cmd.Flags().Changed("wpm") {
		eng.SetWPM(float64(cfg.WPM))
	}
	if cmd.Flags().Changed("smart") {
		eng.SetSmartReading(cfg.SmartReading)
	}
	return eng
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func validateConfig(cfg model.Config) error {
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick-ms must be > 0")
	}
	if cfg.AutosavePeriod <= 0 {
		return fmt.Errorf("autosave-ms must be > 0")
	}
	if cfg.Pacing.MinDelay < 0 {
		return fmt.Errorf("--min-delay-ms must be >= 0")
	}
	if err := cfg.Pacing.Validate(); err != nil {
		return fmt.Errorf("invalid pacing config: %w", err)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
