package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/rainwave-sync/internal/api"
)

// Source issues one read-only action. *api.Client satisfies it.
type Source interface {
	Snapshot(ctx context.Context, action string) (json.RawMessage, error)
}

// Snapshot is one polled result.
type Snapshot struct {
	Action    string
	Payload   json.RawMessage
	FetchedAt time.Time
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(ctx context.Context, s Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(context.Context, Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 1m)
	Concurrency int           // Max requests in flight (default: 2)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	Actions     []string      // Read-only actions to poll
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 2,
		Timeout:     10 * time.Second,
		Actions:     []string{"request_line", "station_song_count"},
	}
}

// Stats counts poll outcomes.
type Stats struct {
	Cycles  int64
	Fetched int64
	Errors  int64
}

// Poller periodically issues read-only requests through the engine.
type Poller struct {
	cfg     Config
	source  Source
	handler SnapshotHandler
	logger  *slog.Logger

	cycles  atomic.Int64
	fetched atomic.Int64
	errors  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. Actions that are not read-only are rejected.
func New(cfg Config, source Source, handler SnapshotHandler, logger *slog.Logger) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Actions) == 0 {
		cfg.Actions = def.Actions
	}
	for _, a := range cfg.Actions {
		if _, ok := api.SnapshotKey(a); !ok {
			return nil, fmt.Errorf("poll action %q is not read-only", a)
		}
	}

	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger.With("component", "poller"),
	}, nil
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"actions", p.cfg.Actions,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:  p.cycles.Load(),
		Fetched: p.fetched.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll issues every configured action with bounded concurrency. A
// failed action is logged and counted; it never cancels the others.
func (p *Poller) pollAll() {
	start := time.Now()
	var fetched, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, action := range p.cfg.Actions {
		action := action
		if p.ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.poll(action); err != nil {
				p.logger.Warn("failed to poll",
					"action", action,
					"error", err,
				)
				failed.Add(1)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}

	g.Wait()

	p.cycles.Add(1)
	p.fetched.Add(fetched.Load())
	p.errors.Add(failed.Load())

	p.logger.Info("poll cycle complete",
		"actions", len(p.cfg.Actions),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// poll fetches and handles a single action.
func (p *Poller) poll(action string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	payload, err := p.source.Snapshot(ctx, action)
	if err != nil {
		return err
	}

	if p.handler != nil {
		s := Snapshot{Action: action, Payload: payload, FetchedAt: time.Now()}
		if err := p.handler.HandleSnapshot(ctx, s); err != nil {
			return fmt.Errorf("handle snapshot: %w", err)
		}
	}

	return nil
}
