package writer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
	"github.com/rickgao/rainwave-sync/internal/model"
)

const insertEvent = `
	INSERT INTO sync_events (id, instance, station, source, key, payload, error_kind, schedule_id, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// EventWriter consumes bus events from a buffered subscription and archives
// them into the sync_events table.
type EventWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the event bus
	input *events.GrowableBuffer[events.Event]

	// Database
	db Batcher

	// Batching
	batch       []model.EventRecord
	batchMu     sync.Mutex
	flushTicker *time.Ticker
	scheduleID  int64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(
	cfg WriterConfig,
	input *events.GrowableBuffer[events.Event],
	db Batcher,
	logger *slog.Logger,
) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &EventWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger.With("component", "event_writer"),
		batch:  make([]model.EventRecord, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what is already buffered, flushes, and shuts down. ctx bounds
// both the wait and the final flush.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
		return ctx.Err()
	}

	if w.input != nil {
		for _, e := range w.input.DrainTo(0) {
			w.handleEvent(ctx, e)
		}
	}
	err := w.flush(ctx)
	w.logger.Info("event writer stopped")
	return err
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// AddSnapshot archives a poller result under its action name.
func (w *EventWriter) AddSnapshot(ctx context.Context, action string, payload json.RawMessage, at time.Time) {
	w.batchMu.Lock()
	sched := w.scheduleID
	w.batchMu.Unlock()

	w.add(ctx, w.record(model.SourceSnapshot, action, payload, "", sched, at))
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *EventWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			e, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleEvent(w.ctx, e)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *EventWriter) handleEvent(ctx context.Context, e events.Event) {
	rec, ok := w.transform(e)
	if !ok {
		w.batchMu.Lock()
		w.metrics.Skipped++
		w.batchMu.Unlock()
		return
	}
	w.add(ctx, rec)
}

func (w *EventWriter) add(ctx context.Context, rec model.EventRecord) {
	w.batchMu.Lock()
	w.batch = append(w.batch, rec)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
}

// transform converts a bus event to a record. State changes carry no
// archival value and are skipped.
func (w *EventWriter) transform(e events.Event) (model.EventRecord, bool) {
	if e.Key == events.KeyState {
		return model.EventRecord{}, false
	}

	w.batchMu.Lock()
	if e.Key == events.KeySchedCurrent {
		var sched struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(e.Payload, &sched) == nil && sched.ID > 0 {
			w.scheduleID = sched.ID
		}
	}
	sched := w.scheduleID
	w.batchMu.Unlock()

	var kind string
	if e.Err != nil {
		kind = connection.KindOf(e.Err).String()
	}
	return w.record(model.SourcePush, string(e.Key), e.Payload, kind, sched, e.ReceivedAt), true
}

func (w *EventWriter) record(source, key string, payload json.RawMessage, kind string, sched int64, at time.Time) model.EventRecord {
	if at.IsZero() {
		at = time.Now()
	}
	receivedAt := at.UnixMicro()
	return model.EventRecord{
		ID:         model.RecordID(w.cfg.Station, key, receivedAt, payload),
		Instance:   w.cfg.Instance,
		Station:    w.cfg.Station,
		Source:     source,
		Key:        key,
		Payload:    payload,
		ErrorKind:  kind,
		ScheduleID: sched,
		ReceivedAt: receivedAt,
	}
}

// flush writes the current batch to the database.
func (w *EventWriter) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.EventRecord, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

var errNoDatabase = errors.New("no database configured")

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *EventWriter) batchInsert(ctx context.Context, rows []model.EventRecord) (conflicts int, err error) {
	if w.db == nil {
		return 0, errNoDatabase
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		var payload any
		if len(r.Payload) > 0 {
			payload = string(r.Payload)
		}
		var kind any
		if r.ErrorKind != "" {
			kind = r.ErrorKind
		}
		batch.Queue(insertEvent,
			r.ID, r.Instance, r.Station, r.Source, r.Key, payload, kind, r.ScheduleID, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
