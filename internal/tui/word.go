package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/flashread/internal/engine"
)

const (
	finishedMarker = "✨ done ✨"
	emptyMarker    = "Open a file or pipe some text"
)

// wordText returns what the card shows for a status.
func wordText(st engine.Status) string {
	switch {
	case st.Empty():
		return emptyMarker
	case st.Finished():
		return finishedMarker
	default:
		return st.Word
	}
}

// wrapCells splits value into lines no wider than width terminal cells.
// Words are never split on whitespace since a word card holds one token.
func wrapCells(value string, width int) []string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return []string{value}
	}
	var lines []string
	var b strings.Builder
	lineWidth := 0
	for _, r := range value {
		w := runewidth.RuneWidth(r)
		if lineWidth+w > width && lineWidth > 0 {
			lines = append(lines, b.String())
			b.Reset()
			lineWidth = 0
		}
		b.WriteRune(r)
		lineWidth += w
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}
