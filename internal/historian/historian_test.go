package historian

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/hustle/internal/cache"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource hands out whatever is sent on its channels.
type chanSource struct {
	records chan *cache.ActionRecord
	errs    chan error
}

func newChanSource() *chanSource {
	return &chanSource{records: make(chan *cache.ActionRecord), errs: make(chan error)}
}

func (s *chanSource) Pop(ctx context.Context, timeout time.Duration) (*cache.ActionRecord, error) {
	select {
	case r := <-s.records:
		return r, nil
	case err := <-s.errs:
		return nil, err
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memSink struct {
	mu       sync.Mutex
	records  []cache.ActionRecord
	writes   int
	failures int
}

func (s *memSink) Write(_ context.Context, records []cache.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *memSink) snapshot() ([]cache.ActionRecord, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cache.ActionRecord, len(s.records))
	copy(out, s.records)
	return out, s.writes
}

func record(code string, idx int) *cache.ActionRecord {
	return &cache.ActionRecord{
		RoomID:      "id-" + code,
		RoomCode:    code,
		ActionIndex: idx,
		ActionType:  "place_card",
		Timestamp:   time.Now().UnixMilli(),
	}
}

func startHistorian(t *testing.T, src Source, sink Sink, opts Options) (cancel func() error) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts.PopTimeout = 10 * time.Millisecond
	h := New(src, sink, logger, opts)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	var once sync.Once
	var runErr error
	cancel = func() error {
		once.Do(func() {
			stop()
			select {
			case runErr = <-done:
			case <-time.After(5 * time.Second):
				runErr = errors.New("historian did not stop")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = cancel() })
	return cancel
}

func TestFlushWhenBatchFull(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	startHistorian(t, src, sink, Options{BatchSize: 2, FlushDelay: time.Hour})

	src.records <- record("AAAAAA", 0)
	src.records <- record("AAAAAA", 1)

	assert.Eventually(t, func() bool {
		got, _ := sink.snapshot()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got, writes := sink.snapshot()
	assert.Equal(t, 1, writes)
	assert.Equal(t, 0, got[0].ActionIndex)
	assert.Equal(t, 1, got[1].ActionIndex)
}

func TestFlushOnTicker(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	startHistorian(t, src, sink, Options{BatchSize: 100, FlushDelay: 20 * time.Millisecond})

	src.records <- record("BBBBBB", 0)

	assert.Eventually(t, func() bool {
		got, _ := sink.snapshot()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFlushOnShutdown(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	stop := startHistorian(t, src, sink, Options{BatchSize: 100, FlushDelay: time.Hour})

	for i := 0; i < 3; i++ {
		src.records <- record("CCCCCC", i)
	}
	require.NoError(t, stop())

	got, _ := sink.snapshot()
	assert.Len(t, got, 3)
}

func TestFailedFlushIsRetried(t *testing.T) {
	src, sink := newChanSource(), &memSink{failures: 1}
	startHistorian(t, src, sink, Options{BatchSize: 100, FlushDelay: 10 * time.Millisecond})

	src.records <- record("DDDDDD", 0)

	assert.Eventually(t, func() bool {
		got, _ := sink.snapshot()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, writes := sink.snapshot()
	assert.GreaterOrEqual(t, writes, 2)
}

func TestInvalidRecordIsSkipped(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	stop := startHistorian(t, src, sink, Options{BatchSize: 100, FlushDelay: time.Hour})

	src.errs <- fmt.Errorf("%w: bad payload", cache.ErrInvalidRecord)
	src.records <- record("EEEEEE", 7)
	require.NoError(t, stop())

	got, _ := sink.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].ActionIndex)
}

func TestSweepMarksQuietRoomsAbandoned(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(newChanSource(), &memSink{}, logger, Options{BatchSize: 100, Inactivity: 10 * time.Minute})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return start }
	h.ingest(*record("FFFFFF", 0))
	h.batch = h.batch[:0]

	h.sweep(start.Add(5 * time.Minute))
	assert.Empty(t, h.batch)
	assert.Len(t, h.lastActivity, 1)

	h.sweep(start.Add(11 * time.Minute))
	require.Len(t, h.batch, 1)
	rec := h.batch[0]
	assert.Equal(t, ActionRoomAbandoned, rec.ActionType)
	assert.Equal(t, "FFFFFF", rec.RoomCode)
	assert.Equal(t, "id-FFFFFF", rec.RoomID)
	assert.Equal(t, 660, rec.ActionPayload["idleSeconds"])
	assert.Empty(t, h.lastActivity)

	h.sweep(start.Add(30 * time.Minute))
	assert.Len(t, h.batch, 1)
}

// decoded mimics a record that travelled through the redis feed.
func decoded(t *testing.T, rec cache.ActionRecord) cache.ActionRecord {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	var out cache.ActionRecord
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func leave(code string, idx, remaining int) cache.ActionRecord {
	rec := *record(code, idx)
	rec.ActionType = "player_leave"
	rec.ActionPayload = map[string]interface{}{"remaining": remaining}
	return rec
}

func TestClosedRoomIsNotAbandoned(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(newChanSource(), &memSink{}, logger, Options{BatchSize: 100, Inactivity: 10 * time.Minute})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return start }

	created := *record("ABC123", 0)
	created.ActionType = "room_create"
	h.ingest(decoded(t, created))
	h.ingest(decoded(t, leave("ABC123", 1, 0)))
	assert.Empty(t, h.lastActivity)

	h.batch = h.batch[:0]
	h.sweep(start.Add(11 * time.Minute))
	assert.Empty(t, h.batch)
}

func TestPartialLeaveKeepsTracking(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(newChanSource(), &memSink{}, logger, Options{BatchSize: 100, Inactivity: 10 * time.Minute})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return start }
	h.ingest(decoded(t, leave("ABC123", 3, 1)))
	h.batch = h.batch[:0]

	h.sweep(start.Add(11 * time.Minute))
	require.Len(t, h.batch, 1)
	assert.Equal(t, ActionRoomAbandoned, h.batch[0].ActionType)
}

func TestReusedCodeIsTrackedPerRoom(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(newChanSource(), &memSink{}, logger, Options{BatchSize: 100, Inactivity: 10 * time.Minute})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return start }

	old := leave("ABC123", 4, 0)
	old.RoomID = "room-old"
	h.ingest(decoded(t, old))

	fresh := *record("ABC123", 0)
	fresh.RoomID = "room-new"
	h.ingest(fresh)
	require.Len(t, h.lastActivity, 1)

	h.batch = h.batch[:0]
	h.sweep(start.Add(11 * time.Minute))
	require.Len(t, h.batch, 1)
	assert.Equal(t, "room-new", h.batch[0].RoomID)
	assert.Equal(t, "ABC123", h.batch[0].RoomCode)
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)

	require.NoError(t, sink.Write(context.Background(), []cache.ActionRecord{*record("GGGGGG", 0), *record("GGGGGG", 1)}))

	sc := bufio.NewScanner(&buf)
	var got []cache.ActionRecord
	for sc.Scan() {
		var rec cache.ActionRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		got = append(got, rec)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "GGGGGG", got[1].RoomCode)
	assert.Equal(t, 1, got[1].ActionIndex)
}
