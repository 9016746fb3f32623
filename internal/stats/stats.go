// Package stats contains reading history calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/flashread/internal/model"
)

const sparkChars = " .:-=+*#%@"

// RunMetrics computes the effective reading speed and completion of a run.
func RunMetrics(run model.Run) (wpm, completion float64) {
	if run.Words > 0 {
		completion = float64(run.WordsRead) / float64(run.Words)
	}
	if run.ElapsedMs <= 0 {
		return 0, completion
	}
	minutes := float64(run.ElapsedMs) / 60000.0
	return float64(run.WordsRead) / minutes, completion
}

// FormatClock renders a duration in milliseconds as mm:ss, rounding to the
// nearest second. Negative and NaN values render as 00:00.
func FormatClock(ms float64) string {
	if math.IsNaN(ms) || ms < 0 {
		return "00:00"
	}
	if math.IsInf(ms, 1) {
		ms = math.MaxInt32
	}
	secs := int64(math.Round(ms / 1000))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatDuration is FormatClock for a time.Duration.
func FormatDuration(d time.Duration) string {
	return FormatClock(float64(d) / float64(time.Millisecond))
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints totals for the runs.
func RenderSummary(w io.Writer, runs []model.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No reading history found.")
		return err
	}
	var totalWPM float64
	var totalWords int
	var totalMs int64
	completed := 0
	bestWPM := 0.0
	for _, r := range runs {
		wpm, _ := RunMetrics(r)
		totalWPM += wpm
		totalWords += r.WordsRead
		totalMs += r.ElapsedMs
		if r.Completed {
			completed++
		}
		if wpm > bestWPM {
			bestWPM = wpm
		}
	}
	count := float64(len(runs))
	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d (%d completed)", len(runs), completed),
		fmt.Sprintf("Words read: %s", humanize.Comma(int64(totalWords))),
		fmt.Sprintf("Time reading: %s", FormatClock(float64(totalMs))),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderTrend prints a sparkline of effective WPM smoothed over window runs.
func RenderTrend(w io.Writer, runs []model.Run, window int) error {
	if len(runs) < 2 {
		return nil
	}
	values := make([]float64, len(runs))
	for i, r := range runs {
		values[i], _ = RunMetrics(r)
	}
	_, err := fmt.Fprintf(w, "WPM trend: [%s]\n\n", Sparkline(MovingAverage(values, window)))
	return err
}

// RenderRunTable prints one row per run, newest last.
func RenderRunTable(w io.Writer, runs []model.Run, now time.Time) error {
	if len(runs) == 0 {
		return nil
	}
	headers := []string{"When", "Source", "Words", "Read", "Time", "Set WPM", "Eff. WPM", "Smart"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		wpm, completion := RunMetrics(r)
		smart := "no"
		if r.SmartReading {
			smart = "yes"
		}
		read := fmt.Sprintf("%.0f%%", completion*100)
		if r.Completed {
			read = "done"
		}
		rows = append(rows, []string{
			humanize.RelTime(r.EndedAt, now, "ago", "from now"),
			sourceLabel(r.Source),
			humanize.Comma(int64(r.Words)),
			read,
			FormatClock(float64(r.ElapsedMs)),
			fmt.Sprintf("%d", r.WPM),
			fmt.Sprintf("%.1f", wpm),
			smart,
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

const maxSourceWidth = 32

func sourceLabel(source string) string {
	if source == "" {
		return "-"
	}
	return truncate(source, maxSourceWidth)
}
