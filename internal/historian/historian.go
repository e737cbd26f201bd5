// Package historian drains the room action feed and hands the records to a
// sink in batches. It also notices rooms that have gone quiet and records them
// as abandoned.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/sirupsen/logrus"
)

// ActionRoomAbandoned is the action type written for a room that produced no
// actions for longer than the inactivity window.
const ActionRoomAbandoned = "room_abandoned"

// actionPlayerLeave closes a room when its "remaining" payload is 0.
const actionPlayerLeave = "player_leave"

// Source yields action records. Pop returns nil, nil when nothing arrived
// within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.ActionRecord, error)
}

// Sink stores a batch of records.
type Sink interface {
	Write(ctx context.Context, records []cache.ActionRecord) error
}

// Options tunes batching and inactivity tracking. Zero values take defaults.
type Options struct {
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	return o
}

type activity struct {
	roomCode string
	last     time.Time
}

// Historian moves records from a Source to a Sink. All state is owned by the
// goroutine running Run.
type Historian struct {
	src    Source
	sink   Sink
	logger logrus.FieldLogger
	opts   Options
	now    func() time.Time

	batch        []cache.ActionRecord
	lastActivity map[string]activity // keyed by room id
}

// New returns a Historian reading from src and writing to sink.
func New(src Source, sink Sink, logger logrus.FieldLogger, opts Options) *Historian {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts = opts.withDefaults()
	return &Historian{
		src:          src,
		sink:         sink,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
		batch:        make([]cache.ActionRecord, 0, opts.BatchSize),
		lastActivity: make(map[string]activity),
	}
}

// Run drains the source until ctx is done, then flushes what it holds.
func (h *Historian) Run(ctx context.Context) error {
	flush := time.NewTicker(h.opts.FlushDelay)
	defer flush.Stop()
	sweep := time.NewTicker(h.opts.SweepInterval)
	defer sweep.Stop()

	h.logger.Info("historian started")
	defer h.logger.Info("historian stopped")

	for {
		select {
		case <-ctx.Done():
			// the caller's context is gone, give the last flush its own
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := h.flush(finalCtx)
			cancel()
			return err
		case <-flush.C:
			h.logFlushErr(h.flush(ctx))
		case <-sweep.C:
			h.sweep(h.now())
		default:
			rec, err := h.src.Pop(ctx, h.opts.PopTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				if errors.Is(err, cache.ErrInvalidRecord) {
					h.logger.WithError(err).Warn("skipping invalid action record")
					continue
				}
				h.logger.WithError(err).Error("failed to read action feed")
				// back off so a dead connection does not spin
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}
			if rec == nil {
				continue
			}
			if h.ingest(*rec) {
				h.logFlushErr(h.flush(ctx))
			}
		}
	}
}

// ingest records activity for the room and queues rec. A room closed by its
// last player is no longer tracked. It reports whether the batch is full.
func (h *Historian) ingest(rec cache.ActionRecord) bool {
	key := rec.RoomID
	if key == "" {
		key = rec.RoomCode
	}
	if closesRoom(rec) {
		delete(h.lastActivity, key)
	} else {
		h.lastActivity[key] = activity{roomCode: rec.RoomCode, last: h.now()}
	}
	h.batch = append(h.batch, rec)
	return len(h.batch) >= h.opts.BatchSize
}

// flush writes the pending batch. On failure the records are kept and
// retried on the next flush.
func (h *Historian) flush(ctx context.Context) error {
	if len(h.batch) == 0 {
		return nil
	}
	pending := make([]cache.ActionRecord, len(h.batch))
	copy(pending, h.batch)

	if err := h.sink.Write(ctx, pending); err != nil {
		return fmt.Errorf("flush %d actions: %w", len(pending), err)
	}
	h.batch = h.batch[:0]
	h.logger.WithField("count", len(pending)).Debug("flushed actions")
	return nil
}

// sweep queues an abandoned record for every room that has been quiet for
// longer than the inactivity window and stops tracking it.
func (h *Historian) sweep(now time.Time) {
	for id, a := range h.lastActivity {
		if now.Sub(a.last) <= h.opts.Inactivity {
			continue
		}
		delete(h.lastActivity, id)
		h.batch = append(h.batch, cache.ActionRecord{
			RoomID:        id,
			RoomCode:      a.roomCode,
			ActionIndex:   -1,
			ActionType:    ActionRoomAbandoned,
			ActionPayload: map[string]interface{}{"idleSeconds": int(now.Sub(a.last).Seconds())},
			Timestamp:     now.UnixMilli(),
		})
		h.logger.WithFields(logrus.Fields{"room": a.roomCode, "roomId": id}).Info("room marked abandoned")
	}
}

// closesRoom reports whether rec is the departure of a room's last player.
func closesRoom(rec cache.ActionRecord) bool {
	if rec.ActionType != actionPlayerLeave {
		return false
	}
	// ints when built in process, float64 once decoded from the feed
	switch n := rec.ActionPayload["remaining"].(type) {
	case int:
		return n == 0
	case float64:
		return n == 0
	case json.Number:
		return n.String() == "0"
	}
	return false
}

func (h *Historian) logFlushErr(err error) {
	if err != nil {
		h.logger.WithError(err).Error("failed to flush actions")
	}
}

// JSONLinesSink writes each record as one JSON object per line.
type JSONLinesSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLinesSink returns a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{w: w}
}

// Write encodes records in order.
func (s *JSONLinesSink) Write(_ context.Context, records []cache.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode action %s/%d: %w", rec.RoomCode, rec.ActionIndex, err)
		}
	}
	return nil
}
