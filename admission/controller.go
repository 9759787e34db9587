// Copyright 2026 Lexgrove Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModelCaller executes one outbound generation call. Implemented by
// RetryingModelClient in production and by function doubles in tests.
type ModelCaller interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Status classifies the immediate answer a caller gets from Submit.
type Status int

const (
	// StatusCompleted means the call ran synchronously and Answer is set.
	StatusCompleted Status = iota + 1

	// StatusBusy means the owner already has a call in flight; retry later.
	StatusBusy

	// StatusQueued means the request was accepted into the throttle queue;
	// the caller polls the ticket for the eventual outcome.
	StatusQueued
)

// Decision is Submit's immediate response.
type Decision struct {
	Status        Status
	Answer        string
	Ticket        string
	Position      int
	EstimatedWait time.Duration
	RetryAfter    time.Duration
}

// TicketState reports where a queued request currently stands.
type TicketState int

const (
	// TicketUnknown means the ticket was never issued or its result expired.
	TicketUnknown TicketState = iota

	// TicketPending means the request is still waiting in the queue or
	// currently being processed by the drain worker.
	TicketPending

	// TicketDone means the request resolved; the Outcome is available.
	TicketDone
)

// flight is one in-flight upstream call that deduplicated followers attach to.
type flight struct {
	done   chan struct{}
	answer string
	err    error
}

func newFlight() *flight {
	return &flight{done: make(chan struct{})}
}

func (f *flight) resolve(answer string, err error) {
	f.answer = answer
	f.err = err
	close(f.done)
}

// lockEntry records when an owner's in-flight call started, for staleness
// checks. The token identifies the acquiring call: after a stale clear the
// original holder's release must not take the successor's fresh lock with it.
type lockEntry struct {
	token     string
	startedAt time.Time
}

// queued is one FIFO entry. resolveOnce guards the race between the drain
// worker and the eviction timer: whichever fires first wins.
type queued struct {
	req         *Request
	ticket      string
	enqueuedAt  time.Time
	resolveOnce sync.Once
	resolve     func(Outcome)
}

func (q *queued) complete(out Outcome) {
	q.resolveOnce.Do(func() { q.resolve(out) })
}

// Controller owns all admission state: the per-user lock map, the in-flight
// fingerprint registry, and the throttle queue. Every field below mu is
// guarded by it.
type Controller struct {
	caller ModelCaller
	logger *slog.Logger

	staleAfter      time.Duration
	cooldown        time.Duration
	maxQueueWait    time.Duration
	drainDelay      time.Duration
	queueDrainDelay time.Duration
	resultTTL       time.Duration

	mu          sync.Mutex
	locks       map[string]lockEntry
	inflight    map[string]*flight
	queue       []*queued
	pending     map[string]struct{}
	results     map[string]Outcome
	throttled   bool
	throttledAt time.Time
	draining    bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller) error

// WithStaleAfter sets the lock staleness threshold. A busy lock older than
// this is forcibly cleared by the next request. Default is 5 minutes.
func WithStaleAfter(d time.Duration) ControllerOption {
	return func(c *Controller) error {
		c.staleAfter = d
		return nil
	}
}

// WithCooldown sets the queue-mode deactivation window. Queue mode turns off
// only after the queue is empty and this long passes with no new throttle
// signal. Default is 2 minutes.
func WithCooldown(d time.Duration) ControllerOption {
	return func(c *Controller) error {
		c.cooldown = d
		return nil
	}
}

// WithMaxQueueWait sets the hard ceiling a queued request may wait before it
// is evicted with a timeout failure. Default is 10 minutes.
func WithMaxQueueWait(d time.Duration) ControllerOption {
	return func(c *Controller) error {
		c.maxQueueWait = d
		return nil
	}
}

// WithDrainDelays sets the inter-item pause of the drain worker: direct is
// used once queue mode has deactivated mid-drain, throttledDelay while it is
// still active. Defaults are 500ms and 3s.
func WithDrainDelays(direct, throttledDelay time.Duration) ControllerOption {
	return func(c *Controller) error {
		c.drainDelay = direct
		c.queueDrainDelay = throttledDelay
		return nil
	}
}

// WithResultTTL sets how long resolved queued outcomes stay pollable.
// Default is 10 minutes.
func WithResultTTL(d time.Duration) ControllerOption {
	return func(c *Controller) error {
		c.resultTTL = d
		return nil
	}
}

// WithControllerLogger sets a custom logger.
// Default is slog.Default().
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewController creates an admission controller around the given model
// caller. Construct one per process and share it across request handlers.
func NewController(caller ModelCaller, opts ...ControllerOption) (*Controller, error) {
	if caller == nil {
		return nil, ErrCallerRequired
	}

	c := &Controller{
		caller:          caller,
		logger:          slog.Default().With("component", "admission"),
		staleAfter:      5 * time.Minute,
		cooldown:        2 * time.Minute,
		maxQueueWait:    10 * time.Minute,
		drainDelay:      500 * time.Millisecond,
		queueDrainDelay: 3 * time.Second,
		resultTTL:       10 * time.Minute,
		locks:           make(map[string]lockEntry),
		inflight:        make(map[string]*flight),
		pending:         make(map[string]struct{}),
		results:         make(map[string]Outcome),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SignalThrottle marks the upstream model as throttling. This is the sole
// trigger for queue mode; RetryingModelClient calls it once a call's retry
// count crosses its threshold.
func (c *Controller) SignalThrottle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.throttledAt = time.Now()
	if !c.throttled {
		c.throttled = true
		c.logger.Warn("upstream throttling detected, entering queue mode")
	}
}

// QueueMode reports whether throttle-adaptive queueing is currently active.
func (c *Controller) QueueMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throttled
}

// Submit runs a request through admission. The decision is one of:
//
//   - StatusCompleted with the answer (direct admission, call finished);
//   - StatusBusy (the owner's lock is held; retry later);
//   - StatusQueued with a ticket to poll (queue mode active).
//
// An error return means the call itself was admitted and failed, or the
// request was invalid.
func (c *Controller) Submit(ctx context.Context, req *Request) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	fp := req.Fingerprint()

	for {
		c.mu.Lock()

		// Dedup: attach to an identical in-flight request.
		if fl, ok := c.inflight[fp]; ok {
			c.mu.Unlock()
			select {
			case <-fl.done:
				if fl.err == nil {
					return &Decision{Status: StatusCompleted, Answer: fl.answer}, nil
				}
				// Leader failed: detach and go through normal admission.
				c.logger.Debug("deduped leader failed, re-admitting follower", "fingerprint", fp)
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Queue mode: accept-but-defer.
		if c.throttled {
			decision := c.enqueueLocked(req)
			c.mu.Unlock()
			return decision, nil
		}

		// Direct admission behind the per-user lock.
		token, acquired := c.acquireLockLocked(req.Owner)
		if !acquired {
			held := time.Since(c.locks[req.Owner].startedAt)
			c.mu.Unlock()
			retryAfter := c.staleAfter - held
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			return &Decision{Status: StatusBusy, RetryAfter: retryAfter}, nil
		}

		fl := newFlight()
		c.inflight[fp] = fl
		c.mu.Unlock()

		answer, err := c.execute(ctx, req, fp, token, fl)
		if err != nil {
			return nil, err
		}
		return &Decision{Status: StatusCompleted, Answer: answer}, nil
	}
}

// Poll reports the state of a queued ticket and, once done, its outcome.
func (c *Controller) Poll(ticket string) (Outcome, TicketState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out, ok := c.results[ticket]; ok {
		return out, TicketDone
	}
	if _, ok := c.pending[ticket]; ok {
		return Outcome{}, TicketPending
	}
	return Outcome{}, TicketUnknown
}

// execute runs the upstream call for a directly admitted request. The lock
// release and fingerprint clearing run on every exit, including panics, so a
// failure never leaves the owner locked out.
func (c *Controller) execute(ctx context.Context, req *Request, fp, token string, fl *flight) (answer string, err error) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, fp)
		c.releaseLockLocked(req.Owner, token)
		c.mu.Unlock()
		fl.resolve(answer, err)
	}()

	answer, err = c.caller.Generate(ctx, req.Prompt())
	if err != nil {
		c.logger.Warn("generation call failed", "owner", req.Owner, "err", err)
	}
	return answer, err
}

// acquireLockLocked takes the owner's lock unless a fresh one is held,
// returning the acquisition token. A lock past the staleness threshold is
// cleared and re-acquired. Caller holds c.mu.
func (c *Controller) acquireLockLocked(owner string) (string, bool) {
	if entry, ok := c.locks[owner]; ok {
		if time.Since(entry.startedAt) < c.staleAfter {
			return "", false
		}
		c.logger.Warn("clearing stale user lock", "owner", owner, "heldFor", time.Since(entry.startedAt))
	}
	token := uuid.NewString()
	c.locks[owner] = lockEntry{token: token, startedAt: time.Now()}
	return token, true
}

// releaseLockLocked drops the owner's lock only when it still belongs to the
// releasing call. Caller holds c.mu.
func (c *Controller) releaseLockLocked(owner, token string) {
	if entry, ok := c.locks[owner]; ok && entry.token == token {
		delete(c.locks, owner)
	}
}

// enqueueLocked appends the request to the FIFO, arms its eviction timer, and
// ensures exactly one drain worker is running. Caller holds c.mu.
func (c *Controller) enqueueLocked(req *Request) *Decision {
	item := &queued{
		req:        req,
		ticket:     uuid.NewString(),
		enqueuedAt: time.Now(),
	}
	item.resolve = func(out Outcome) {
		c.completeTicket(item.ticket, out)
	}

	c.queue = append(c.queue, item)
	c.pending[item.ticket] = struct{}{}
	position := len(c.queue)

	time.AfterFunc(c.maxQueueWait, func() {
		c.evict(item)
	})

	if !c.draining {
		c.draining = true
		go c.drainLoop()
	}

	c.logger.Info("request queued under throttle",
		"owner", req.Owner, "ticket", item.ticket, "position", position)

	return &Decision{
		Status:        StatusQueued,
		Ticket:        item.ticket,
		Position:      position,
		EstimatedWait: time.Duration(position) * c.queueDrainDelay,
	}
}

// completeTicket moves a queued request's outcome into the pollable result
// map and prunes expired entries.
func (c *Controller) completeTicket(ticket string, out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, ticket)
	out.ResolvedAt = time.Now()
	c.results[ticket] = out

	cutoff := time.Now().Add(-c.resultTTL)
	for id, res := range c.results {
		if res.ResolvedAt.Before(cutoff) {
			delete(c.results, id)
		}
	}
}

// evict removes a still-queued item that outwaited the hard ceiling. Items
// already popped by the drain worker are left alone; the once-guard on the
// item settles any remaining race.
func (c *Controller) evict(item *queued) {
	c.mu.Lock()
	removed := false
	for i, candidate := range c.queue {
		if candidate == item {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		c.logger.Warn("evicting queued request past wait ceiling",
			"owner", item.req.Owner, "ticket", item.ticket, "waited", time.Since(item.enqueuedAt))
		item.complete(Outcome{Err: ErrQueueTimeout})
	}
}

// drainLoop is the single background worker consuming the queue. At most one
// loop is ever active, guarded by the draining flag.
func (c *Controller) drainLoop() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			active := c.throttled
			lastThrottle := c.throttledAt
			c.mu.Unlock()

			if active {
				c.armDeactivation(lastThrottle)
			}
			return
		}

		item := c.queue[0]
		c.queue = c.queue[1:]
		fp := item.req.Fingerprint()

		// An identical request already in flight: attach to its completion
		// instead of issuing a second upstream call.
		if existing, ok := c.inflight[fp]; ok {
			c.mu.Unlock()
			<-existing.done
			item.complete(Outcome{Answer: existing.answer, Err: existing.err})
			continue
		}

		// A busy owner rejects this one item only; the rest of the queue
		// keeps moving.
		token, acquired := c.acquireLockLocked(item.req.Owner)
		if !acquired {
			c.mu.Unlock()
			item.complete(Outcome{Err: ErrUserBusy})
			continue
		}

		fl := newFlight()
		c.inflight[fp] = fl
		throttledNow := c.throttled
		c.mu.Unlock()

		answer, err := c.caller.Generate(context.Background(), item.req.Prompt())

		c.mu.Lock()
		delete(c.inflight, fp)
		c.releaseLockLocked(item.req.Owner, token)
		c.mu.Unlock()
		fl.resolve(answer, err)

		item.complete(Outcome{Answer: answer, Err: err})

		delay := c.drainDelay
		if throttledNow {
			delay = c.queueDrainDelay
		}
		time.Sleep(delay)
	}
}

// armDeactivation starts the cooldown timer after the queue empties. Queue
// mode turns off only if no new throttle signal arrives before it fires.
func (c *Controller) armDeactivation(lastThrottle time.Time) {
	time.AfterFunc(c.cooldown, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.throttled && !c.throttledAt.After(lastThrottle) && len(c.queue) == 0 {
			c.throttled = false
			c.logger.Info("throttle cooldown elapsed, returning to direct admission")
		}
	})
}
