package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/clock"
	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
)

// ErrClosed is returned to callers whose message reached a lobby that has shut down.
var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type Start struct{ Reply chan Result }

func (Start) isLobbyMsg() {}

type SubmitPick struct {
	Req   engine.PickRequest
	Reply chan Result
}

func (SubmitPick) isLobbyMsg() {}

type Cancel struct{ Reply chan Result }

func (Cancel) isLobbyMsg() {}

type Resume struct{ Reply chan Result }

func (Resume) isLobbyMsg() {}

// DeadlineExpired is sent by the lobby's own clock.
type DeadlineExpired struct{ Token clock.Token }

func (DeadlineExpired) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Result struct {
	Snapshot engine.Snapshot
	Slot     engine.PickSlot
	Err      error
}

type View struct {
	Session engine.Session
	Armed   bool
}

// Publisher receives every event a committed transition produces, in order.
type Publisher interface {
	Publish(ev engine.Event)
}

type Deps struct {
	Store     engine.Store
	Catalog   engine.Catalog
	Roster    engine.RosterStore // nil derives rosters from the ledger
	Picker    engine.Picker
	Publisher Publisher
	Logger    *zap.Logger

	AutoPickRetry time.Duration
	SaveTimeout   time.Duration
	Now           func() time.Time

	// OnTerminal runs on the lobby goroutine after a completed or cancelled
	// draft has been published, just before the lobby stops.
	OnTerminal func(l *Lobby)
}

// Lobby owns one draft session. Every mutation runs on its goroutine.
type Lobby struct {
	id      string
	inbox   chan Msg
	session engine.Session
	clock   *clock.Clock
	armed   clock.Token
	isArmed bool
	snap    atomic.Pointer[engine.Snapshot]
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, initial engine.Session, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AutoPickRetry <= 0 {
		deps.AutoPickRetry = 5 * time.Second
	}
	if deps.SaveTimeout <= 0 {
		deps.SaveTimeout = 5 * time.Second
	}
	if deps.Picker.Strategy == nil {
		deps.Picker = engine.NewPicker(nil)
	}

	l := &Lobby{
		id:      initial.ID,
		inbox:   make(chan Msg, 64),
		session: initial.Clone(),
		deps:    deps,
		log:     logging.OrNop(deps.Logger).With(zap.String("session_id", initial.ID)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.clock = clock.New(l.expire)
	l.storeSnapshot()

	// Recovered drafts resume their clock with whatever time was left.
	if l.session.Status == engine.StatusInProgress {
		l.arm(l.deps.Now())
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Start:
				msg.Reply <- l.handle(engine.Command{Type: engine.CmdStart, At: l.deps.Now()})

			case SubmitPick:
				msg.Reply <- l.handle(msg.Req.Command(l.deps.Now()))

			case Cancel:
				msg.Reply <- l.handle(engine.Command{Type: engine.CmdCancel, At: l.deps.Now()})

			case Resume:
				msg.Reply <- l.handle(engine.Command{Type: engine.CmdResume, At: l.deps.Now()})

			case DeadlineExpired:
				l.onDeadline(msg.Token)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{Session: l.session.Clone(), Armed: l.isArmed}

			case Shutdown:
				l.shutdown()
				return
			}

			if l.session.Status.Terminal() {
				if l.deps.OnTerminal != nil {
					l.deps.OnTerminal(l)
				}
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handle(cmd engine.Command) Result {
	events, err := l.commit(cmd)
	if err != nil {
		return Result{Err: err}
	}
	res := Result{Snapshot: *l.snap.Load()}
	if len(events) > 0 {
		if made, ok := events[0].Payload.(engine.PickMade); ok {
			res.Slot = made.PickSlot
		}
	}
	return res
}

// commit applies cmd to a copy of the session, persists it, and only then
// makes it current, re-arms the clock and publishes.
func (l *Lobby) commit(cmd engine.Command) ([]engine.Event, error) {
	events, next, err := engine.Apply(l.session, cmd, l.deps.Catalog)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.deps.SaveTimeout)
	err = l.deps.Store.Save(ctx, next)
	cancel()
	if err != nil {
		l.log.Error("persist draft failed",
			zap.String("command", string(cmd.Type)),
			zap.Int("pick", cmd.PickNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persist draft %s: %w", next.ID, err)
	}

	l.session = next
	l.disarm()
	if next.Status == engine.StatusInProgress {
		l.arm(cmd.At)
	}
	l.storeSnapshot()

	if l.deps.Publisher != nil {
		for _, ev := range events {
			l.deps.Publisher.Publish(ev)
		}
	}
	return events, nil
}

func (l *Lobby) onDeadline(tok clock.Token) {
	if !l.isArmed || tok != l.armed {
		l.log.Debug("stale deadline ignored", zap.Int("pick", tok.Pick))
		return
	}
	l.isArmed = false
	if l.session.Status != engine.StatusInProgress || tok.Pick != l.session.CurrentPick {
		l.log.Debug("deadline for settled pick ignored", zap.Int("pick", tok.Pick))
		return
	}

	now := l.deps.Now()
	entity, err := engine.ChooseFallback(l.session, l.deps.Catalog, l.deps.Roster, l.deps.Picker)
	if errors.Is(err, engine.ErrNoEligibleEntity) {
		l.log.Warn("no eligible entity, stalling draft", zap.Int("pick", tok.Pick))
		if _, err := l.commit(engine.Command{Type: engine.CmdStall, Reason: engine.ErrNoEligibleEntity.Error(), At: now}); err != nil {
			l.retry(tok.Pick)
		}
		return
	}
	if err != nil {
		l.log.Error("fallback pick failed", zap.Int("pick", tok.Pick), zap.Error(err))
		l.retry(tok.Pick)
		return
	}

	_, err = l.commit(engine.Command{
		Type:       engine.CmdAutoPick,
		PickNumber: tok.Pick,
		EntityID:   entity,
		At:         now,
	})
	if err != nil {
		l.retry(tok.Pick)
		return
	}
	l.log.Info("auto-picked", zap.Int("pick", tok.Pick), zap.String("entity_id", entity))
}

// retry re-arms the current pick after a failed auto-pick so the draft cannot hang.
func (l *Lobby) retry(pick int) {
	if l.session.Status != engine.StatusInProgress || pick != l.session.CurrentPick {
		return
	}
	l.armFor(pick, l.deps.AutoPickRetry)
}

func (l *Lobby) arm(now time.Time) {
	l.armFor(l.session.CurrentPick, l.session.DeadlineAt.Sub(now))
}

func (l *Lobby) armFor(pick int, d time.Duration) {
	tok, err := l.clock.Arm(pick, d)
	if err != nil {
		l.log.Error("arm deadline failed", zap.Int("pick", pick), zap.Error(err))
		return
	}
	l.armed = tok
	l.isArmed = true
}

func (l *Lobby) disarm() {
	if l.isArmed {
		l.clock.Cancel(l.armed)
		l.isArmed = false
	}
}

// expire runs on the clock's timer goroutine.
func (l *Lobby) expire(tok clock.Token) {
	select {
	case l.inbox <- DeadlineExpired{Token: tok}:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) storeSnapshot() {
	snap := engine.BuildSnapshot(l.session, l.deps.Now())
	l.snap.Store(&snap)
}

func (l *Lobby) shutdown() {
	l.clock.Stop()
	l.isArmed = false
	l.cancel()
}

// Snapshot returns the latest committed state with the time remaining
// recomputed for now. Safe from any goroutine.
func (l *Lobby) Snapshot() engine.Snapshot {
	snap := *l.snap.Load()
	if snap.DeadlineAt != nil {
		snap.RemainingMS = snap.Remaining(l.deps.Now()).Milliseconds()
	}
	return snap
}

func (l *Lobby) ID() string { return l.id }

func (l *Lobby) Start(ctx context.Context) (engine.Snapshot, error) {
	res, err := l.ask(ctx, func(reply chan Result) Msg { return Start{Reply: reply} })
	return res.Snapshot, err
}

func (l *Lobby) SubmitPick(ctx context.Context, req engine.PickRequest) (engine.PickSlot, error) {
	res, err := l.ask(ctx, func(reply chan Result) Msg { return SubmitPick{Req: req, Reply: reply} })
	return res.Slot, err
}

func (l *Lobby) Cancel(ctx context.Context) (engine.Snapshot, error) {
	res, err := l.ask(ctx, func(reply chan Result) Msg { return Cancel{Reply: reply} })
	return res.Snapshot, err
}

func (l *Lobby) Resume(ctx context.Context) (engine.Snapshot, error) {
	res, err := l.ask(ctx, func(reply chan Result) Msg { return Resume{Reply: reply} })
	return res.Snapshot, err
}

func (l *Lobby) ask(ctx context.Context, build func(chan Result) Msg) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case l.inbox <- build(reply):
	case <-l.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-l.done:
		// the reply may have been written just before the lobby stopped
		select {
		case res := <-reply:
			return res, res.Err
		default:
			return Result{}, ErrClosed
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Expose the inbox so tests or the hub can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed when the lobby goroutine exits.
func (l *Lobby) Done() <-chan struct{} { return l.done }
