package stats

import (
	"context"

	"github.com/verte-zerg/flashread/internal/model"
)

// RunLister is implemented by *store.Store.
type RunLister interface {
	ListRuns(ctx context.Context, cfg model.HistoryConfig) ([]model.Run, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Runs    []model.Run
	Sources []SourceCount
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, st RunLister, cfg model.HistoryConfig, topSources int) (Report, error) {
	runs, err := st.ListRuns(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Runs:    runs,
		Sources: TopSources(runs, topSources),
	}, nil
}
