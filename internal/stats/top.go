package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/flashread/internal/model"
)

// SourceCount is the reading activity for one source.
type SourceCount struct {
	Source string
	Runs   int
	Words  int
}

// TopSources returns the n most read sources by words read.
func TopSources(runs []model.Run, n int) []SourceCount {
	if n <= 0 || len(runs) == 0 {
		return nil
	}
	bySource := map[string]*SourceCount{}
	for _, r := range runs {
		label := sourceLabel(r.Source)
		item, ok := bySource[label]
		if !ok {
			item = &SourceCount{Source: label}
			bySource[label] = item
		}
		item.Runs++
		item.Words += r.WordsRead
	}
	items := make([]SourceCount, 0, len(bySource))
	for _, item := range bySource {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Words == items[j].Words {
			return items[i].Source < items[j].Source
		}
		return items[i].Words > items[j].Words
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// RenderTopSources prints the most read sources.
func RenderTopSources(w io.Writer, sources []SourceCount) error {
	if len(sources) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Most read"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{s.Source, humanize.Comma(int64(s.Runs)), humanize.Comma(int64(s.Words))})
	}
	for _, line := range formatTable([]string{"Source", "Runs", "Words"}, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
