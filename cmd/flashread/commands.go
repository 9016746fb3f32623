package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/editor"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/flashread/internal/config"
	"github.com/verte-zerg/flashread/internal/logging"
	"github.com/verte-zerg/flashread/internal/model"
	"github.com/verte-zerg/flashread/internal/pacing"
	"github.com/verte-zerg/flashread/internal/session"
	"github.com/verte-zerg/flashread/internal/stats"
	"github.com/verte-zerg/flashread/internal/statsui"
	"github.com/verte-zerg/flashread/internal/text"
)

const (
	defaultTrendWindow = 5
	defaultTopSources  = 5
)

var (
	historySince     string
	historyLast      int
	historyCompleted bool
	historyWindow    int
	historyTop       int
	historyPlain     bool

	estimateWPM   int
	estimateSmart bool
)

var titleStyle = lipgloss.NewStyle().Bold(true)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	c, err := editor.Cmd("flashread", path)
	if err != nil {
		return fmt.Errorf("failed to prepare editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file to:", path)
	return err
}

func defaultConfigTemplate() string {
	p := pacing.DefaultConfig()
	return fmt.Sprintf(`# flashread configuration
# Uncomment a value to enable it. CLI flags override config values.

[reader]
# wpm = %d                 # Words per minute (%d-%d)
# smart = false            # Scale display time by word length
# watch = false            # Reload the file when it changes
# tick-ms = %d             # Elapsed time refresh interval
# autosave-ms = %d        # Shortest interval between session saves

[pacing]
# base-word-length = %d     # Words of this length keep the base delay
# speed-up-max = %.2f      # Smallest factor, for the shortest words
# slow-down-max = %.2f     # Largest factor, for the longest words
# short-ref = %d            # Length treated as shortest
# long-ref = %d            # Length treated as longest
# min-delay-ms = %d        # Floor for smart delays
# fallback-delay-ms = %d  # Delay used when the speed is not positive
`,
		pacing.DefaultWPM, pacing.MinWPM, pacing.MaxWPM,
		defaultTickMs,
		defaultAutosaveMs,
		p.BaseWordLength,
		p.SpeedUpMax,
		p.SlowDownMax,
		p.ShortRef,
		p.LongRef,
		p.MinDelay.Milliseconds(),
		p.FallbackDelay.Milliseconds(),
	)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show reading history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N runs")
	cmd.Flags().BoolVar(&historyCompleted, "completed", false, "only runs read to the end")
	cmd.Flags().IntVar(&historyWindow, "trend-window", defaultTrendWindow, "moving average window for the WPM trend")
	cmd.Flags().IntVar(&historyTop, "top", defaultTopSources, "number of most read sources to list")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print history as text instead of the interactive browser")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig()
	if err != nil {
		return err
	}
	persist := openPersistence(loadEnv(), logging.Discard())
	defer persist.close()
	if persist.store == nil {
		return fmt.Errorf("history is unavailable without a database")
	}

	if !historyPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		p := tea.NewProgram(statsui.NewModel(persist.store, cfg, historyWindow), tea.WithAltScreen())
		_, err := p.Run()
		return err
	}

	report, err := stats.BuildReport(context.Background(), persist.store, cfg, historyTop)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return renderHistory(cmd.OutOrStdout(), report, historyWindow, time.Now())
}

func historyConfig() (model.HistoryConfig, error) {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return model.HistoryConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return model.HistoryConfig{}, fmt.Errorf("--last must be >= 0")
	}
	return model.HistoryConfig{
		Since:         sinceTime,
		Last:          historyLast,
		CompletedOnly: historyCompleted,
	}, nil
}

func renderHistory(w io.Writer, report stats.Report, window int, now time.Time) error {
	if err := stats.RenderSummary(w, report.Runs); err != nil {
		return err
	}
	if len(report.Runs) == 0 {
		return nil
	}
	if err := stats.RenderTrend(w, report.Runs, window); err != nil {
		return err
	}
	if err := stats.RenderTopSources(w, report.Sources); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render("Runs")); err != nil {
		return err
	}
	return stats.RenderRunTable(w, report.Runs, now)
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the saved reading position",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved session",
		Args:  cobra.NoArgs,
		RunE:  runSessionShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE:  runSessionClearCmd,
	})
	return cmd
}

func runSessionShowCmd(cmd *cobra.Command, _ []string) error {
	persist := openPersistence(loadEnv(), logging.Discard())
	defer persist.close()
	snap, ok := persist.sessions.Load(context.Background())
	if !ok {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No saved session.")
		return err
	}
	return renderSession(cmd.OutOrStdout(), snap, time.Now())
}

func renderSession(w io.Writer, snap session.Snapshot, now time.Time) error {
	total := text.Tokenize(snap.SourceText).Len()
	position := 0
	if total > 0 {
		position = min(snap.Position, total-1) + 1
	}
	source := snap.Source
	if source == "" {
		source = "-"
	}
	smart := "off"
	if snap.SmartReading {
		smart = "on"
	}
	lines := []string{
		titleStyle.Render("Saved session"),
		fmt.Sprintf("Source: %s", source),
		fmt.Sprintf("Word: %d/%s", position, humanize.Comma(int64(total))),
		fmt.Sprintf("Elapsed: %s", stats.FormatDuration(snap.Elapsed())),
		fmt.Sprintf("Speed: %d WPM, smart reading %s", int(snap.WPM), smart),
	}
	if !snap.SavedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Saved: %s", humanize.RelTime(snap.SavedAt, now, "ago", "from now")))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func runSessionClearCmd(_ *cobra.Command, _ []string) error {
	persist := openPersistence(loadEnv(), logging.Discard())
	defer persist.close()
	if err := persist.sessions.Clear(context.Background()); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	logErrln("Saved session cleared.")
	return nil
}

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [file|-]",
		Short: "Estimate the reading time of a text",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEstimateCmd,
	}
	cmd.Flags().IntVar(&estimateWPM, "wpm", pacing.DefaultWPM, "reading speed in words per minute")
	cmd.Flags().BoolVar(&estimateSmart, "smart", false, "include smart reading delays")
	return cmd
}

func runEstimateCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "wpm", &estimateWPM, fileCfg.Reader.WPM)
	applyBoolConfig(cmd, "smart", &estimateSmart, fileCfg.Reader.Smart)
	src, err := resolveSource(args, session.Snapshot{}, false)
	if err != nil {
		return err
	}
	cfg := fileCfg.ApplyPacing(pacing.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid pacing config: %w", err)
	}
	return renderEstimate(cmd.OutOrStdout(), text.Tokenize(src.text), pacing.ClampWPM(estimateWPM), estimateSmart, cfg)
}

func renderEstimate(w io.Writer, words text.Words, wpm int, smart bool, cfg pacing.Config) error {
	total := cfg.PlaybackTotal(words, float64(wpm), smart)
	mode := "base pace"
	if smart {
		mode = "smart reading"
	}
	_, err := fmt.Fprintf(w, "%s words, %s at %d WPM (%s)\n",
		humanize.Comma(int64(words.Len())), stats.FormatDuration(total), wpm, mode)
	return err
}
