package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/flashread/internal/clock"
	"github.com/verte-zerg/flashread/internal/engine"
	"github.com/verte-zerg/flashread/internal/store"
)

var _ KV = (*store.Store)(nil)

const sample = "the quick brown fox jumps over the lazy dog"

func TestCaptureRestoreRoundTrip(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	e := engine.New(engine.WithClock(clk), engine.WithWPM(120), engine.WithSmartReading(true))
	e.Load(sample)
	e.Play()
	clk.Advance(1700 * time.Millisecond)

	snap := Capture(e)
	if e.Status().State != engine.StatePlaying {
		t.Fatalf("capture disturbed the running engine")
	}
	raw, err := Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	restored := Restore(decoded, engine.WithClock(clk))
	want := e.Status()
	got := restored.Status()
	if got.Source != want.Source || got.Position != want.Position {
		t.Fatalf("text or position differs: got %d want %d", got.Position, want.Position)
	}
	if got.WPM != want.WPM || got.SmartReading != want.SmartReading {
		t.Fatalf("pacing differs: got %v/%v want %v/%v", got.WPM, got.SmartReading, want.WPM, want.SmartReading)
	}
	if got.Elapsed != want.Elapsed {
		t.Fatalf("elapsed differs: got %v want %v", got.Elapsed, want.Elapsed)
	}
	if got.State != engine.StatePaused {
		t.Fatalf("expected restored engine to wait paused, got %s", got.State)
	}
	clk.Advance(10 * time.Second)
	if restored.Status().Position != got.Position {
		t.Fatalf("restored engine started playing on its own")
	}
}

func TestRestoreInvalidUsesDefaults(t *testing.T) {
	e := Restore(Snapshot{}, engine.WithWPM(250))
	st := e.Status()
	if st.State != engine.StateIdle || st.Total != 0 || st.WPM != 250 {
		t.Fatalf("expected empty idle engine with defaults, got %+v", st)
	}
}

func TestRestoreClampsPosition(t *testing.T) {
	snap := Snapshot{Version: snapshotVersion, SourceText: "one two three", Position: 50, WPM: 200}
	st := Restore(snap).Status()
	if st.Position != 2 {
		t.Fatalf("expected clamped position 2, got %d", st.Position)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"{not json",
		`{"version": 99, "source_text": "a"}`,
		`{"version": 1, "elapsed_ms": -5}`,
		`{"version": 1, "source_text": "a", "wpm": 1e-12}`,
		`{"version": 1, "source_text": "a", "wpm": 19}`,
		`{"version": 1, "source_text": "a", "wpm": 1e9}`,
		`{"version": 1, "source_text": "a", "wpm": -1}`,
	} {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", raw, err)
		}
	}
}

func TestDecodeAcceptsUnsetWPM(t *testing.T) {
	snap, err := Decode(`{"version": 1, "source_text": "a b", "wpm": 0}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := Restore(snap, engine.WithWPM(250))
	if st := e.Status(); st.WPM != 250 || st.TotalEstimate <= 0 {
		t.Fatalf("expected default speed, got %+v", st)
	}
}

func TestManagerLoadMissing(t *testing.T) {
	m := NewManager(NewMemoryKV())
	if _, ok := m.Load(context.Background()); ok {
		t.Fatalf("expected no snapshot")
	}
}

func TestManagerDiscardsCorruptedRecord(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	if err := kv.Set(ctx, DefaultKey, "garbage"); err != nil {
		t.Fatalf("set: %v", err)
	}
	m := NewManager(kv)
	if _, ok := m.Load(ctx); ok {
		t.Fatalf("expected corrupted record to be rejected")
	}
	if _, ok, _ := kv.Get(ctx, DefaultKey); ok {
		t.Fatalf("expected corrupted record to be removed")
	}
}

func TestManagerSaveLoadWithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "flashread.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()
	saved := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	e := engine.New(engine.WithWPM(400))
	e.Load(sample)
	e.Seek(4)

	m := NewManager(st, WithKey("test"))
	m.now = func() time.Time { return saved }
	m.SetSource("fox.txt")
	if err := m.Save(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok := NewManager(st, WithKey("test")).Load(ctx)
	if !ok {
		t.Fatalf("expected saved snapshot")
	}
	if loaded.Source != "fox.txt" || loaded.Position != 4 || loaded.WPM != 400 || !loaded.SavedAt.Equal(saved) {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}
	if !strings.Contains(loaded.SourceText, "lazy dog") {
		t.Fatalf("source text not stored")
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := m.Load(ctx); ok {
		t.Fatalf("expected cleared snapshot")
	}
}

func TestAutosaveIsThrottled(t *testing.T) {
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	m := NewManager(kv, WithAutosaveInterval(time.Hour))
	e := engine.New()
	e.Load(sample)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.Autosave(ctx, e)
	}
	if kv.sets != 1 {
		t.Fatalf("expected one throttled write, got %d", kv.sets)
	}
}

type countingKV struct {
	*MemoryKV
	sets int
}

func (kv *countingKV) Set(ctx context.Context, key, value string) error {
	kv.sets++
	return kv.MemoryKV.Set(ctx, key, value)
}
