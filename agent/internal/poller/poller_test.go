package poller

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bitdiag/bitdiag/agent/internal/compute"
	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sample = `00100
11110
10110
10111
10101
01111
00111
11100
10000
11001
00010
01010
`

// collector is a Sink that records every report.
type collector struct {
	mu      sync.Mutex
	reports []*types.Report
}

func (c *collector) Ship(r *types.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *collector) bySource() map[string]*types.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*types.Report)
	for _, r := range c.reports {
		out[r.SourceID] = r
	}
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

func newPoller(t *testing.T) (*Poller, *collector) {
	t.Helper()
	sink := &collector{}
	p := New(compute.NewEngine(), sink)
	p.now = func() time.Time { return time.Date(2021, 12, 3, 0, 0, 0, 0, time.UTC) }
	return p, sink
}

func TestPollAll_InlineAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	p, sink := newPoller(t)
	err := p.Apply(context.Background(), []config.Source{
		{ID: "inline", Type: config.TypeInline, Data: sample},
		{ID: "file", Type: config.TypeFile, Path: path},
		{ID: "missing", Type: config.TypeFile, Path: filepath.Join(t.TempDir(), "nope.txt")},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := p.PollAll(context.Background()); err != nil {
		t.Fatalf("PollAll: %v", err)
	}

	got := sink.bySource()
	if len(got) != 3 {
		t.Fatalf("got %d reports, want 3", len(got))
	}
	for _, id := range []string{"inline", "file"} {
		r := got[id]
		if r.State != types.StateOK || r.PowerConsumption != 198 || r.LifeSupport != 230 {
			t.Errorf("%s: state=%s power=%d life=%d, want ok/198/230",
				id, r.State, r.PowerConsumption, r.LifeSupport)
		}
	}
	if got["missing"].State != types.StateUnreachable {
		t.Errorf("missing: state = %s, want unreachable", got["missing"].State)
	}
}

func TestApply_ReconcilesSources(t *testing.T) {
	p, _ := newPoller(t)
	ctx := context.Background()

	a := config.Source{ID: "a", Type: config.TypeInline, Data: "101"}
	b := config.Source{ID: "b", Type: config.TypeInline, Data: "010"}
	if err := p.Apply(ctx, []config.Source{a, b}); err != nil {
		t.Fatal(err)
	}
	readerA := p.pipelines["a"].reader

	b2 := b
	b2.Data = "011"
	c := config.Source{ID: "c", Type: config.TypeInline, Data: "111"}
	if err := p.Apply(ctx, []config.Source{a, b2, c}); err != nil {
		t.Fatal(err)
	}

	if got := p.Sources(); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Sources() = %v, want [a b c]", got)
	}
	if p.pipelines["a"].reader != readerA {
		t.Error("unchanged source a was rebuilt")
	}
	if p.pipelines["b"].src.Data != "011" {
		t.Errorf("source b not updated: data = %q", p.pipelines["b"].src.Data)
	}

	if err := p.Apply(ctx, []config.Source{c}); err != nil {
		t.Fatal(err)
	}
	if got := p.Sources(); len(got) != 1 || got[0] != "c" {
		t.Errorf("Sources() after removal = %v, want [c]", got)
	}
}

func TestApply_BadSourceReported(t *testing.T) {
	p, _ := newPoller(t)
	err := p.Apply(context.Background(), []config.Source{
		{ID: "ok", Type: config.TypeInline, Data: "1"},
		{ID: "bad", Type: config.TypeHTTP, Endpoint: "https://x",
			Auth: config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}},
	})
	if err == nil {
		t.Fatal("expected error for unbuildable source")
	}
	if got := p.Sources(); len(got) != 1 || got[0] != "ok" {
		t.Errorf("Sources() = %v, want [ok]", got)
	}
}

func TestPollAll_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	p, sink := newPoller(t)
	if err := p.Apply(context.Background(), []config.Source{
		{ID: "file", Type: config.TypeFile, Path: path},
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PollAll(ctx); err == nil {
		t.Error("expected error from cancelled poll")
	}
	if sink.len() != 0 {
		t.Errorf("got %d reports from cancelled poll, want 0", sink.len())
	}
}

func TestWatch_RepollsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("101\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p, sink := newPoller(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		p.Wait()
	}()

	if err := p.Apply(ctx, []config.Source{
		{ID: "watched", Type: config.TypeFile, Path: path, Watch: true},
	}); err != nil {
		t.Fatal(err)
	}

	// Let the watcher register before touching the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && sink.len() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	r := sink.bySource()["watched"]
	if r == nil {
		t.Fatal("no report after file change")
	}
	if r.PowerConsumption != 198 {
		t.Errorf("power_consumption = %d, want 198", r.PowerConsumption)
	}
}

func TestApply_RemovingWatchedSourceStopsWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, _ := newPoller(t)
	if err := p.Apply(context.Background(), []config.Source{
		{ID: "watched", Type: config.TypeFile, Path: path, Watch: true},
	}); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher still running after its source was removed")
	}
}
