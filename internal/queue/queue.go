package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stationkit/redeemq/internal/client"
	"github.com/stationkit/redeemq/internal/connectivity"
	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// DefaultBackoff is the finite retry delay table used when Options.Backoff is
// empty. The last delay is reused once attempts exceed the table length.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	time.Minute,
	5 * time.Minute,
}

// Request describes one redemption to enqueue.
type Request struct {
	VoucherCode string
	Method      client.Method
	Context     map[string]string
}

// Options configure a Queue. Store, Remote, and Connectivity are required.
type Options struct {
	StationID    string
	Store        KVStore
	Remote       client.RemoteClient
	Connectivity connectivity.Observer
	Logger       logpkg.Logger
	Backoff      []time.Duration
	Clock        Clock

	// OnComplete fires exactly once per entry, on terminal success, after the
	// entry has been removed.
	OnComplete func(Entry, client.RedeemResult)
	// OnError fires once per failed attempt (retryable) and once on terminal
	// failure (after removal). It never fires for entries merely deferred by
	// backoff.
	OnError func(Entry, client.RedeemResult)
}

// Queue owns the persisted list of pending redemptions for one station.
type Queue struct {
	station string
	store   KVStore
	remote  client.RemoteClient
	conn    connectivity.Observer
	logger  logpkg.Logger
	backoff []time.Duration
	clock   Clock

	onComplete func(Entry, client.RedeemResult)
	onError    func(Entry, client.RedeemResult)

	mu       sync.Mutex
	entries  []*Entry // newest-enqueued first
	flushing bool

	retryTimer Timer
	retryAtMs  int64

	closed bool
}

// Open loads the persisted entry list for the station and wires connectivity.
// If the observer reports online at construction, a flush is triggered
// immediately. One queue instance must own one persistence key at a time;
// cross-process sharing is not guarded.
func Open(opts Options) (*Queue, error) {
	if opts.StationID == "" {
		return nil, errors.New("queue: Options.StationID is required")
	}
	if opts.Store == nil || opts.Remote == nil || opts.Connectivity == nil {
		return nil, errors.New("queue: Store, Remote, and Connectivity are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	backoff := opts.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}

	q := &Queue{
		station:    opts.StationID,
		store:      opts.Store,
		remote:     opts.Remote,
		conn:       opts.Connectivity,
		logger:     logger.With(logpkg.Component("queue"), logpkg.Str("station", opts.StationID)),
		backoff:    backoff,
		clock:      clock,
		onComplete: opts.OnComplete,
		onError:    opts.OnError,
	}
	q.load()

	q.conn.OnOnline(func() { q.Flush() })
	if q.conn.IsOnline() {
		go q.Flush()
	}
	return q, nil
}

// Close stops any pending retry timer. It does not abort an in-flight attempt.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.retryTimer != nil {
		q.retryTimer.Stop()
		q.retryTimer = nil
	}
}

// Enqueue records a redemption and triggers a flush without blocking on
// network completion. Enqueueing a voucher whose entry is still pending
// returns the existing entry unchanged.
func (q *Queue) Enqueue(req Request) (Entry, error) {
	if strings.TrimSpace(req.VoucherCode) == "" {
		return Entry{}, errors.New("queue: voucher code is required")
	}
	method := req.Method
	if method == "" {
		method = client.MethodManual
	}

	q.mu.Lock()
	id := EntryID(q.station, req.VoucherCode)
	now := q.clock.NowMs()

	if existing := q.findLocked(id); existing != nil {
		if existing.Status == StatusPending {
			snapshot := *existing
			q.mu.Unlock()
			return snapshot, nil
		}
		// Overwrite in place: createdAt and attempts carry over so the
		// idempotency key stays stable for the same logical operation.
		existing.VoucherCode = req.VoucherCode
		existing.Method = method
		existing.Context = req.Context
		existing.Status = StatusPending
		existing.LastError = ""
		existing.UpdatedAtMs = now
		snapshot := *existing
		q.persistLocked()
		q.mu.Unlock()
		go q.Flush()
		return snapshot, nil
	}

	entry := &Entry{
		ID:          id,
		VoucherCode: req.VoucherCode,
		Method:      method,
		Context:     req.Context,
		CreatedAtMs: now,
		UpdatedAtMs: now,
		Status:      StatusPending,
	}
	q.entries = append([]*Entry{entry}, q.entries...)
	snapshot := *entry
	q.persistLocked()
	q.mu.Unlock()

	go q.Flush()
	return snapshot, nil
}

// List returns a read-only snapshot of the current entries, newest first.
func (q *Queue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

// Remove deletes the entry and persists. It prevents future attempts but
// cannot abort a call already in flight.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removeLocked(id) {
		q.persistLocked()
	}
}

// Flush drains eligible entries through the remote client. It is idempotent
// and non-reentrant: if a pass is already running, or the observer reports
// offline, it returns immediately.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.flushing || q.closed {
		q.mu.Unlock()
		return
	}
	if !q.conn.IsOnline() {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	ids := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		ids = append(ids, e.ID)
	}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.flushing = false
		// Entries skipped inside their backoff window during this pass still
		// need a wakeup; rearm for the earliest one.
		q.rearmRetryLocked()
		q.mu.Unlock()
	}()

	for _, id := range ids {
		attempt, ok := q.beginAttempt(id)
		if !ok {
			continue
		}
		q.processAttempt(attempt)
	}
}

// beginAttempt checks eligibility and, if eligible, transitions the entry to
// processing, increments attempts, clears lastError, and persists. It returns
// a snapshot for the network call.
func (q *Queue) beginAttempt(id string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.findLocked(id)
	if e == nil || e.Status == StatusProcessing || e.Status == StatusSucceeded {
		return Entry{}, false
	}
	if e.LastError != "" {
		elapsed := time.Duration(q.clock.NowMs()-e.UpdatedAtMs) * time.Millisecond
		if elapsed < q.delayFor(e.Attempts) {
			return Entry{}, false
		}
	}

	e.Status = StatusProcessing
	e.Attempts++
	e.LastError = ""
	e.UpdatedAtMs = q.clock.NowMs()
	q.persistLocked()
	return *e, true
}

// processAttempt performs the network call for one entry and applies the
// classified outcome.
func (q *Queue) processAttempt(e Entry) {
	req := client.RedeemRequest{
		VoucherCode: e.VoucherCode,
		StationID:   q.station,
		Method:      e.Method,
		Context:     e.Context,
	}
	res, err := q.remote.Redeem(context.Background(), req, e.IdempotencyKey())
	if err != nil {
		// Transport failure before any classified response: always retryable.
		res = client.RedeemResult{
			Status:    client.StatusNetworkError,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	q.applyResult(e.ID, res)
}

func (q *Queue) applyResult(id string, res client.RedeemResult) {
	q.mu.Lock()
	e := q.findLocked(id)
	if e == nil {
		// Removed while the call was in flight.
		q.mu.Unlock()
		return
	}
	e.UpdatedAtMs = q.clock.NowMs()

	switch {
	case res.Success():
		e.Status = StatusSucceeded
		e.LastError = ""
		snapshot := *e
		q.removeLocked(id)
		q.persistLocked()
		q.mu.Unlock()
		q.logger.Info("redemption succeeded",
			logpkg.Str("voucher", snapshot.VoucherCode),
			logpkg.Int("attempts", snapshot.Attempts),
			logpkg.Str("status", string(res.Status)),
		)
		if q.onComplete != nil {
			q.onComplete(snapshot, res)
		}

	case !res.Retryable:
		e.Status = StatusFailed
		e.LastError = res.Message
		snapshot := *e
		q.removeLocked(id)
		q.persistLocked()
		q.mu.Unlock()
		q.logger.Warn("redemption failed terminally",
			logpkg.Str("voucher", snapshot.VoucherCode),
			logpkg.Str("status", string(res.Status)),
			logpkg.Str("message", res.Message),
		)
		if q.onError != nil {
			q.onError(snapshot, res)
		}

	default:
		e.Status = StatusFailed
		e.LastError = res.Message
		if e.LastError == "" {
			e.LastError = string(res.Status)
		}
		delay := q.delayFor(e.Attempts)
		snapshot := *e
		q.persistLocked()
		q.scheduleRetryLocked(delay)
		q.mu.Unlock()
		q.logger.Info("redemption attempt failed, will retry",
			logpkg.Str("voucher", snapshot.VoucherCode),
			logpkg.Int("attempts", snapshot.Attempts),
			logpkg.Dur("retry_in", delay),
		)
		if q.onError != nil {
			q.onError(snapshot, res)
		}
	}
}

// delayFor returns the backoff delay for an entry with the given attempt
// count, reusing the last table entry once attempts exceed the table length.
func (q *Queue) delayFor(attempts int) time.Duration {
	idx := attempts
	if idx < 0 {
		idx = 0
	}
	if idx >= len(q.backoff) {
		idx = len(q.backoff) - 1
	}
	return q.backoff[idx]
}

// rearmRetryLocked arms the retry timer for the earliest backed-off entry.
// The timer is shared, so after any flush pass the earliest remaining window
// must own it; otherwise an entry whose timer was superseded by an earlier
// one would wait for an unrelated flush. Caller holds q.mu.
func (q *Queue) rearmRetryLocked() {
	if q.closed {
		return
	}
	var nextAt int64 = -1
	for _, e := range q.entries {
		if e.Status != StatusFailed || e.LastError == "" {
			continue
		}
		at := e.UpdatedAtMs + q.delayFor(e.Attempts).Milliseconds()
		if nextAt < 0 || at < nextAt {
			nextAt = at
		}
	}
	if nextAt < 0 {
		return
	}
	d := time.Duration(nextAt-q.clock.NowMs()) * time.Millisecond
	if d < 0 {
		d = 0
	}
	q.scheduleRetryLocked(d)
}

// scheduleRetryLocked arms a timer that re-invokes Flush once the backoff
// window elapses, if still online. An earlier pending timer is kept.
func (q *Queue) scheduleRetryLocked(d time.Duration) {
	if q.closed {
		return
	}
	fireAt := q.clock.NowMs() + d.Milliseconds()
	if q.retryTimer != nil && q.retryAtMs <= fireAt {
		return
	}
	if q.retryTimer != nil {
		q.retryTimer.Stop()
	}
	q.retryAtMs = fireAt
	q.retryTimer = q.clock.AfterFunc(d, func() {
		q.mu.Lock()
		q.retryTimer = nil
		q.mu.Unlock()
		if q.conn.IsOnline() {
			q.Flush()
		}
	})
}

func (q *Queue) findLocked(id string) *Entry {
	for _, e := range q.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) bool {
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// load reads the persisted blob. Entries left in processing by a crash are
// returned to retry eligibility.
func (q *Queue) load() {
	raw, found, err := q.store.Get(QueueKey(q.station))
	if err != nil {
		q.logger.Error("failed to load queue state", logpkg.Err(err))
		return
	}
	if !found || len(raw) == 0 {
		return
	}
	var entries []*Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		q.logger.Error("corrupt queue state, starting empty", logpkg.Err(err))
		return
	}
	for _, e := range entries {
		if e.Status == StatusProcessing {
			e.Status = StatusFailed
			e.LastError = "attempt interrupted by restart"
		}
	}
	q.entries = entries
}

// persistLocked rewrites the full entry list. Caller holds q.mu.
func (q *Queue) persistLocked() {
	raw, err := json.Marshal(q.entries)
	if err != nil {
		q.logger.Error("failed to encode queue state", logpkg.Err(err))
		return
	}
	if err := q.store.Set(QueueKey(q.station), raw); err != nil {
		q.logger.Error("failed to persist queue state", logpkg.Err(err))
	}
}
