// Package broadcast fans draft events out to every viewer of a draft room.
//
// Each room has its own lock. Each subscriber has a bounded queue drained by a
// flush task on a shared worker pool, so Publish never waits on a connection.
// A subscriber whose queue is full is evicted and must resubscribe to get a
// fresh snapshot.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
)

// Conn is the transport a subscriber is reached through.
type Conn interface {
	Send(ctx context.Context, ev engine.Event) error
	Close(reason string) error
}

// SnapshotSource returns the current snapshot of a draft.
type SnapshotSource func(ctx context.Context, sessionID string) (engine.Snapshot, error)

type Option func(*Broadcaster)

func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

func WithWorkers(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Broadcaster) { b.log = logging.OrNop(l) }
}

type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]*room

	source       SnapshotSource
	pool         *ants.Pool
	workers      int
	queueSize    int
	writeTimeout time.Duration
	log          *zap.Logger
}

type room struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	dead bool
	last int // highest event version published to the room
}

// snapshotAttempts bounds how often Subscribe retakes a snapshot that a
// concurrent publish made stale before reading it under the room lock.
const snapshotAttempts = 3

type Subscription struct {
	ID        string
	SessionID string
	JoinedAt  time.Time

	conn     Conn
	queue    chan engine.Event
	baseline int
	flushing atomic.Bool
	closed   atomic.Bool
	once     sync.Once
	done     chan struct{}
	b        *Broadcaster
}

// Done is closed once the subscription has been removed from its room.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func New(source SnapshotSource, opts ...Option) (*Broadcaster, error) {
	b := &Broadcaster{
		rooms:        make(map[string]*room),
		source:       source,
		workers:      256,
		queueSize:    32,
		writeTimeout: 3 * time.Second,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	pool, err := ants.NewPool(b.workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// Subscribe registers conn as a viewer of sessionID. The first event it
// receives is a snapshot; later events are only those newer than the snapshot.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string, conn Conn) (*Subscription, error) {
	sub := &Subscription{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		JoinedAt:  time.Now(),
		conn:      conn,
		queue:     make(chan engine.Event, b.queueSize),
		done:      make(chan struct{}),
		b:         b,
	}

	for attempt := 1; ; attempt++ {
		// The room exists before the snapshot is taken, so a publish racing the
		// snapshot raises r.last and is caught below.
		r := b.room(sessionID)
		snap, err := b.source(ctx, sessionID)
		if err != nil {
			b.releaseIfEmpty(sessionID, r)
			return nil, err
		}

		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}
		if r.last > snap.Version {
			if attempt < snapshotAttempts {
				r.mu.Unlock()
				continue
			}
			// the draft is resident by now, so this read stays in memory
			if snap, err = b.source(ctx, sessionID); err != nil {
				r.mu.Unlock()
				b.releaseIfEmpty(sessionID, r)
				return nil, err
			}
		}
		sub.baseline = snap.Version
		sub.queue <- engine.SnapshotEvent(snap)
		r.subs[sub.ID] = sub
		r.mu.Unlock()
		break
	}

	b.log.Debug("subscriber joined",
		zap.String("session_id", sessionID),
		zap.String("subscriber_id", sub.ID),
		zap.Int("baseline", sub.baseline),
	)
	b.schedule(sub)
	return sub, nil
}

// Publish enqueues ev for every subscriber of its session without blocking.
func (b *Broadcaster) Publish(ev engine.Event) {
	b.mu.RLock()
	r := b.rooms[ev.SessionID]
	b.mu.RUnlock()
	if r == nil {
		return
	}

	var ready, evicted []*Subscription
	r.mu.Lock()
	r.last = max(r.last, ev.Version)
	for id, sub := range r.subs {
		if ev.Version <= sub.baseline {
			continue
		}
		select {
		case sub.queue <- ev:
			ready = append(ready, sub)
		default:
			delete(r.subs, id)
			evicted = append(evicted, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range ready {
		b.schedule(sub)
	}
	for _, sub := range evicted {
		b.log.Warn("evicting slow subscriber",
			zap.String("session_id", sub.SessionID),
			zap.String("subscriber_id", sub.ID),
			zap.String("event", string(ev.Type)),
		)
		b.drop(sub, "slow consumer")
	}
}

// Unsubscribe removes sub. Safe to call more than once and after eviction.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.remove(sub)
	sub.shutdown()
}

// Subscribers reports how many live subscribers a session has.
func (b *Broadcaster) Subscribers(sessionID string) int {
	b.mu.RLock()
	r := b.rooms[sessionID]
	b.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close drops every subscriber and releases the worker pool.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	var all []*Subscription
	for id, r := range b.rooms {
		r.mu.Lock()
		for _, sub := range r.subs {
			all = append(all, sub)
		}
		clear(r.subs)
		r.dead = true
		r.mu.Unlock()
		delete(b.rooms, id)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.shutdown()
		_ = sub.conn.Close("server shutting down")
	}
	b.pool.Release()
}

func (b *Broadcaster) room(sessionID string) *room {
	b.mu.RLock()
	r := b.rooms[sessionID]
	b.mu.RUnlock()
	if r != nil {
		return r
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if r = b.rooms[sessionID]; r == nil {
		r = &room{subs: make(map[string]*Subscription)}
		b.rooms[sessionID] = r
	}
	return r
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.rooms[sub.SessionID]
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.subs, sub.ID)
	if len(r.subs) == 0 {
		r.dead = true
		delete(b.rooms, sub.SessionID)
	}
	r.mu.Unlock()
}

func (b *Broadcaster) releaseIfEmpty(sessionID string, r *room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) == 0 && b.rooms[sessionID] == r {
		r.dead = true
		delete(b.rooms, sessionID)
	}
}

func (b *Broadcaster) drop(sub *Subscription, reason string) {
	b.remove(sub)
	if sub.shutdown() {
		go func() { _ = sub.conn.Close(reason) }()
	}
}

func (b *Broadcaster) schedule(sub *Subscription) {
	if sub.closed.Load() || !sub.flushing.CompareAndSwap(false, true) {
		return
	}
	if err := b.pool.Submit(sub.flush); err != nil {
		go sub.flush()
	}
}

// shutdown marks the subscription closed and reports whether this call did it.
func (s *Subscription) shutdown() bool {
	first := false
	s.once.Do(func() {
		first = true
		s.closed.Store(true)
		close(s.done)
	})
	return first
}

// flush drains the queue in order. At most one flush runs per subscriber.
func (s *Subscription) flush() {
	for {
		if s.closed.Load() {
			s.flushing.Store(false)
			return
		}
		select {
		case ev := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), s.b.writeTimeout)
			err := s.conn.Send(ctx, ev)
			cancel()
			if err != nil {
				s.b.log.Info("subscriber write failed",
					zap.String("session_id", s.SessionID),
					zap.String("subscriber_id", s.ID),
					zap.Error(err),
				)
				s.flushing.Store(false)
				s.b.drop(s, "write failed")
				return
			}
		default:
			s.flushing.Store(false)
			// a publish may have enqueued after the empty check but seen flushing=true
			if len(s.queue) == 0 || !s.flushing.CompareAndSwap(false, true) {
				return
			}
		}
	}
}
