package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bitdiag/bitdiag/agent/internal/compute"
	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/agent/internal/source"
	"github.com/bitdiag/bitdiag/pkg/types"
)

// maxConcurrentReads bounds the number of sources read in parallel per tick.
const maxConcurrentReads = 8

// Sink receives every Report produced by a poll. *shipper.Shipper satisfies it.
type Sink interface {
	Ship(*types.Report)
}

// Poller owns one pipeline per configured source and drives the
// read → diagnose → ship cycle.
type Poller struct {
	engine *compute.Engine
	sink   Sink
	now    func() time.Time // injectable for tests

	mu        sync.Mutex
	pipelines map[string]*pipeline

	watchers sync.WaitGroup
}

type pipeline struct {
	src    config.Source
	reader source.Reader
	stop   context.CancelFunc // non-nil while a file watcher runs
}

// New returns a Poller with no sources. Call Apply to register them.
func New(engine *compute.Engine, sink Sink) *Poller {
	return &Poller{
		engine:    engine,
		sink:      sink,
		now:       time.Now,
		pipelines: make(map[string]*pipeline),
	}
}

// Apply reconciles the running pipelines with sources. Unchanged sources keep
// their reader and engine state; changed ones are rebuilt; removed ones are
// stopped and forgotten by the engine. Watched file sources get a watcher
// bound to ctx that re-polls the source on every change.
//
// Sources whose reader cannot be built are skipped and reported in the
// returned error; the rest are still applied.
func (p *Poller) Apply(ctx context.Context, sources []config.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := make(map[string]config.Source, len(sources))
	for _, src := range sources {
		want[src.ID] = src
	}

	for id, pl := range p.pipelines {
		if src, ok := want[id]; ok && src == pl.src {
			continue
		}
		pl.close()
		delete(p.pipelines, id)
		if _, still := want[id]; !still {
			p.engine.Forget(id)
			slog.Info("poller: source removed", "source", id)
		}
	}

	var failed []string
	for _, src := range sources {
		if _, ok := p.pipelines[src.ID]; ok {
			continue
		}
		r, err := source.New(src)
		if err != nil {
			slog.Error("poller: skipping source, could not build reader", "source", src.ID, "err", err)
			failed = append(failed, src.ID)
			continue
		}
		pl := &pipeline{src: src, reader: r}
		if src.Watch {
			p.startWatch(ctx, pl)
		}
		p.pipelines[src.ID] = pl
		slog.Info("poller: registered source", "id", src.ID, "type", src.Type, "watch", src.Watch)
	}

	if len(failed) > 0 {
		return fmt.Errorf("poller: %d source(s) not registered: %v", len(failed), failed)
	}
	return nil
}

// Sources returns the IDs of the registered sources in sorted order.
func (p *Poller) Sources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.pipelines))
	for id := range p.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PollAll reads every registered source concurrently, diagnoses the results
// and hands the Reports to the sink. It returns once every read has finished
// or ctx is cancelled.
func (p *Poller) PollAll(ctx context.Context) error {
	p.mu.Lock()
	snapshot := make([]*pipeline, 0, len(p.pipelines))
	for _, pl := range p.pipelines {
		snapshot = append(snapshot, pl)
	}
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for _, pl := range snapshot {
		pl := pl
		g.Go(func() error { return p.pollOne(gctx, pl) })
	}
	return g.Wait()
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if err := p.PollAll(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("poller: poll failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollAll(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("poller: poll failed", "err", err)
			}
		}
	}
}

// Wait blocks until every file watcher started by Apply has exited.
// Watchers stop when the ctx given to Apply is cancelled or their source is
// removed.
func (p *Poller) Wait() {
	p.watchers.Wait()
}

// pollOne reads a single source. Read failures are not errors here: the
// engine turns them into unreachable reports. Only context cancellation
// aborts the group.
func (p *Poller) pollOne(ctx context.Context, pl *pipeline) error {
	res, err := pl.reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("poller: read %q: %w", pl.src.ID, err)
	}
	rep := p.engine.Process(res, p.now())
	p.sink.Ship(rep)
	slog.Debug("poller: report produced",
		"source", rep.SourceID,
		"state", rep.State,
		"power_consumption", rep.PowerConsumption,
		"life_support", rep.LifeSupport,
	)
	return nil
}

func (p *Poller) startWatch(ctx context.Context, pl *pipeline) {
	wctx, cancel := context.WithCancel(ctx)
	pl.stop = cancel
	p.watchers.Add(1)
	go func() {
		defer p.watchers.Done()
		err := source.WatchFile(wctx, pl.src, func() {
			if err := p.pollOne(wctx, pl); err != nil && wctx.Err() == nil {
				slog.Warn("poller: re-poll after change failed", "source", pl.src.ID, "err", err)
			}
		})
		if err != nil {
			slog.Error("poller: file watcher stopped", "source", pl.src.ID, "err", err)
		}
	}()
}

func (pl *pipeline) close() {
	if pl.stop != nil {
		pl.stop()
	}
}
