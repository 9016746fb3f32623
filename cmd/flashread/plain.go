package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/flashread/internal/engine"
	"github.com/verte-zerg/flashread/internal/model"
	"github.com/verte-zerg/flashread/internal/session"
	"github.com/verte-zerg/flashread/internal/stats"
	"github.com/verte-zerg/flashread/internal/tui"
	"github.com/verte-zerg/flashread/internal/watch"
)

type plainOptions struct {
	cmd     *cobra.Command
	cfg     model.Config
	src     textSource
	snap    session.Snapshot
	resume  bool
	persist persistence
	watcher *watch.Watcher
	logger  *log.Logger
	// stopDone ends playback at the last word instead of waiting for reloads.
	stopDone bool
}

// runPlain prints one word per line at the reading pace. It is used when
// stdout is not a terminal.
func runPlain(ctx context.Context, w io.Writer, opts plainOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan engine.Event, tui.DefaultBridgeSize)
	observe := func(ev engine.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	eng := newEngine(opts.cmd, opts.cfg, opts.src, opts.snap, opts.resume, opts.logger, engine.WithObserver(observe))
	start := eng.Status()
	if start.Empty() {
		return errNoText
	}
	startedAt := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return printWords(gctx, w, events, opts.stopDone)
	})
	if opts.watcher != nil {
		reload := reloadFunc(opts.src)
		g.Go(func() error {
			return reloadOnChange(gctx, opts.watcher, eng, reload, opts.logger)
		})
	}
	eng.Play()
	err := g.Wait()
	eng.Close()

	end := eng.Status()
	if serr := opts.persist.sessions.Save(context.Background(), eng); serr != nil {
		opts.logger.Error("failed to save session", "error", serr)
	}
	recordPlainRun(opts, start, end, startedAt)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printWords writes the word of every advancement until playback finishes
// or ctx ends. Resuming on the word printed last, as after a reload, does not
// print it again.
func printWords(ctx context.Context, w io.Writer, events <-chan engine.Event, stopDone bool) error {
	printed := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			st := ev.Status
			switch ev.Type {
			case engine.EventStateChanged, engine.EventPositionChanged:
				if st.State != engine.StatePlaying {
					continue
				}
				if ev.Type == engine.EventStateChanged && st.Position == printed {
					continue
				}
				if _, err := fmt.Fprintln(w, st.Word); err != nil {
					return err
				}
				printed = st.Position
			case engine.EventFinished:
				if _, err := fmt.Fprintln(w, finishedLine(st)); err != nil {
					return err
				}
				printed = -1
				if stopDone {
					return nil
				}
			}
		}
	}
}

func finishedLine(st engine.Status) string {
	return fmt.Sprintf("✨ done ✨ %s words in %s", humanize.Comma(int64(st.Total)), stats.FormatDuration(st.Elapsed))
}

// reloadOnChange reloads the text after each change and keeps playing from
// the same word.
func reloadOnChange(ctx context.Context, w *watch.Watcher, eng *engine.Engine, reload func() (string, error), logger *log.Logger) error {
	for {
		if err := w.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		source, err := reload()
		if err != nil {
			logger.Warn("failed to reload text", "error", err)
			continue
		}
		st := eng.Status()
		n := eng.LoadAt(source, st.Position, st.Elapsed)
		logger.Info("text reloaded", "words", n)
		eng.Play()
	}
}

func recordPlainRun(opts plainOptions, start, end engine.Status, startedAt time.Time) {
	if opts.persist.runs == nil {
		return
	}
	wordsRead := max(end.Position-start.Position, 0)
	elapsedMs := max((end.Elapsed - start.Elapsed).Milliseconds(), 0)
	if wordsRead == 0 && elapsedMs == 0 {
		return
	}
	run := model.Run{
		StartedAt:    startedAt,
		EndedAt:      time.Now(),
		Source:       opts.src.label,
		Words:        end.Total,
		WordsRead:    wordsRead,
		WPM:          int(end.WPM),
		SmartReading: end.SmartReading,
		ElapsedMs:    elapsedMs,
		Completed:    end.Finished(),
	}
	if _, err := opts.persist.runs.InsertRun(context.Background(), run); err != nil {
		opts.logger.Error("failed to save run", "error", err)
	}
}
