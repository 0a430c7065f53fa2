package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/bot-draft-backend/internal/catalog"
	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/store/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *recorder) Publish(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(sessionID string, t engine.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.SessionID == sessionID && ev.Type == t {
			n++
		}
	}
	return n
}

func testPool(n int) *catalog.Catalog {
	players := make([]catalog.Player, 0, n)
	for i := 1; i <= n; i++ {
		players = append(players, catalog.Player{ID: fmt.Sprintf("P%03d", i), Position: "WR", ADP: float64(i)})
	}
	return catalog.New(nil, players...)
}

func newTestHub(t *testing.T, st engine.Store, cat engine.Catalog) (*Hub, *recorder) {
	t.Helper()
	pub := &recorder{}
	h := NewHub(context.Background(), st, cat, pub, Options{AutoPickRetry: 20 * time.Millisecond})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h, pub
}

func draftConfig(id string, pick time.Duration) engine.Config {
	return engine.Config{ID: id, TeamOrder: []string{"A", "B"}, Rounds: 2, PickDuration: pick, Snake: true}
}

func TestHub_ScheduleValidates(t *testing.T) {
	h, _ := newTestHub(t, memory.New(), testPool(4))
	ctx := context.Background()

	snap, err := h.Schedule(ctx, draftConfig("d1", time.Minute))
	require.NoError(t, err)
	require.Equal(t, engine.StatusScheduled, snap.Status)
	require.Equal(t, 4, snap.TotalPicks)
	require.Equal(t, 1, h.Len())

	_, err = h.Schedule(ctx, draftConfig("d1", time.Minute))
	require.ErrorIs(t, err, engine.ErrInvalidConfig)

	_, err = h.Schedule(ctx, engine.Config{TeamOrder: []string{"A"}, Rounds: 0, PickDuration: time.Second})
	require.ErrorIs(t, err, engine.ErrInvalidConfig)

	generated, err := h.Schedule(ctx, draftConfig("", time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, generated.SessionID)
}

func TestHub_UnknownDraft(t *testing.T) {
	h, _ := newTestHub(t, memory.New(), testPool(4))
	ctx := context.Background()

	_, err := h.Start(ctx, "missing")
	require.ErrorIs(t, err, engine.ErrSessionNotFound)
	_, err = h.Snapshot(ctx, "missing")
	require.ErrorIs(t, err, engine.ErrSessionNotFound)
	_, err = h.SubmitPick(ctx, engine.PickRequest{SessionID: "missing", PickNumber: 1})
	require.ErrorIs(t, err, engine.ErrSessionNotFound)
}

func TestHub_DraftRunsToCompletion(t *testing.T) {
	h, pub := newTestHub(t, memory.New(), testPool(8))
	ctx := context.Background()

	_, err := h.Schedule(ctx, draftConfig("d1", time.Minute))
	require.NoError(t, err)
	_, err = h.Start(ctx, "d1")
	require.NoError(t, err)

	for i, team := range []string{"A", "B", "B", "A"} {
		_, err := h.SubmitPick(ctx, engine.PickRequest{
			SessionID:  "d1",
			PickNumber: i + 1,
			EntityID:   fmt.Sprintf("P%03d", i+1),
			TeamID:     team,
		})
		require.NoError(t, err, "pick %d", i+1)
	}

	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, pub.count("d1", engine.EvtDraftCompleted))

	snap, err := h.Snapshot(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, engine.StatusCompleted, snap.Status)
	require.Len(t, snap.Picks, 4)

	_, err = h.SubmitPick(ctx, engine.PickRequest{SessionID: "d1", PickNumber: 4, EntityID: "P005", TeamID: "A"})
	require.ErrorIs(t, err, engine.ErrInvalidState)
	_, err = h.Cancel(ctx, "d1")
	require.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestHub_ConcurrentSubmitsOneWinner(t *testing.T) {
	h, pub := newTestHub(t, memory.New(), testPool(40))
	ctx := context.Background()
	_, err := h.Schedule(ctx, draftConfig("d1", time.Minute))
	require.NoError(t, err)
	_, err = h.Start(ctx, "d1")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.SubmitPick(ctx, engine.PickRequest{
				SessionID:  "d1",
				PickNumber: 1,
				EntityID:   fmt.Sprintf("P%03d", i),
				TeamID:     "A",
			})
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, engine.ErrWrongTurn)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.Equal(t, 1, pub.count("d1", engine.EvtPickMade))
}

func TestHub_SessionsProgressIndependently(t *testing.T) {
	h, _ := newTestHub(t, memory.New(), testPool(8))
	ctx := context.Background()

	const drafts = 20
	for i := 0; i < drafts; i++ {
		id := fmt.Sprintf("d%d", i)
		_, err := h.Schedule(ctx, draftConfig(id, time.Minute))
		require.NoError(t, err)
		_, err = h.Start(ctx, id)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < drafts; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for pick, team := range []string{"A", "B", "B"} {
				_, err := h.SubmitPick(ctx, engine.PickRequest{
					SessionID:  id,
					PickNumber: pick + 1,
					EntityID:   fmt.Sprintf("P%03d", pick+1),
					TeamID:     team,
				})
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("d%d", i))
	}
	wg.Wait()

	for i := 0; i < drafts; i++ {
		snap, err := h.Snapshot(ctx, fmt.Sprintf("d%d", i))
		require.NoError(t, err)
		require.Equal(t, 4, snap.CurrentPick)
		require.Len(t, snap.Picks, 3)
	}
}

func TestHub_RecoverRearmsOverdueDraft(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	s, err := engine.NewSession(draftConfig("d1", time.Minute), time.Now())
	require.NoError(t, err)
	_, s, err = engine.Apply(s, engine.Command{Type: engine.CmdStart, At: time.Now().Add(-time.Hour)}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, s))

	done, err := engine.NewSession(draftConfig("d2", time.Minute), time.Now())
	require.NoError(t, err)
	done.Status = engine.StatusCancelled
	require.NoError(t, st.Save(ctx, done))

	h, pub := newTestHub(t, st, testPool(8))
	n, err := h.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Eventually(t, func() bool { return pub.count("d1", engine.EvtPickMade) >= 1 }, time.Second, 5*time.Millisecond)
	stored, err := st.Load(ctx, "d1")
	require.NoError(t, err)
	slot, err := stored.Ledger.Slot(1)
	require.NoError(t, err)
	require.Equal(t, engine.SourceAuto, slot.Source)
}

func TestHub_LazyLoadsScheduledDraft(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	s, err := engine.NewSession(draftConfig("d1", time.Minute), time.Now())
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, s))

	h, _ := newTestHub(t, st, testPool(4))
	require.Equal(t, 0, h.Len())

	snap, err := h.Start(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, engine.StatusInProgress, snap.Status)
	require.Equal(t, 1, h.Len())
}

func TestHub_ShutdownStopsLobbies(t *testing.T) {
	h, _ := newTestHub(t, memory.New(), testPool(4))
	ctx := context.Background()
	_, err := h.Schedule(ctx, draftConfig("d1", time.Minute))
	require.NoError(t, err)

	sctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(sctx))
	require.Equal(t, 0, h.Len())

	_, err = h.Start(ctx, "d1")
	require.Error(t, err)
}

// slowStore widens the window between a draft's existence check and its write.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Load(ctx context.Context, id string) (engine.Session, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func TestHub_ConcurrentScheduleSameID(t *testing.T) {
	st := slowStore{Store: memory.New()}
	h, _ := newTestHub(t, st, testPool(8))
	ctx := context.Background()

	configs := []engine.Config{
		{ID: "dup", TeamOrder: []string{"A", "B"}, Rounds: 2, PickDuration: time.Minute, Snake: true},
		{ID: "dup", TeamOrder: []string{"X", "Y", "Z"}, Rounds: 3, PickDuration: time.Minute, Snake: true},
	}
	errs := make([]error, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.Schedule(ctx, cfg)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, engine.ErrInvalidConfig)
			failed++
		}
	}
	require.Equal(t, 1, failed)

	stored, err := st.Load(ctx, "dup")
	require.NoError(t, err)
	live, err := h.Snapshot(ctx, "dup")
	require.NoError(t, err)
	require.Equal(t, stored.TeamOrder, live.TeamOrder)
	require.Equal(t, stored.TotalPicks(), live.TotalPicks)
}

func TestHub_ReadViews(t *testing.T) {
	h, _ := newTestHub(t, memory.New(), testPool(4))
	ctx := context.Background()

	for _, id := range []string{"d2", "d1"} {
		_, err := h.Schedule(ctx, draftConfig(id, time.Minute))
		require.NoError(t, err)
	}
	_, err := h.Start(ctx, "d1")
	require.NoError(t, err)
	_, err = h.SubmitPick(ctx, engine.PickRequest{SessionID: "d1", PickNumber: 1, EntityID: "P003", TeamID: "A"})
	require.NoError(t, err)

	list, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "d1", list[0].SessionID)
	require.Equal(t, engine.StatusInProgress, list[0].Status)
	require.Equal(t, engine.StatusScheduled, list[1].Status)

	board, err := h.Board(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "P003", board[0].Picks[0].EntityID)

	team, err := h.TeamSummary(ctx, "d1", "A")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"WR": 1}, team.Positions)
	require.Equal(t, 1, team.Remaining)
	_, err = h.TeamSummary(ctx, "d1", "Q")
	require.ErrorIs(t, err, engine.ErrTeamNotFound)

	available, err := h.Available(ctx, "d1")
	require.NoError(t, err)
	ids := make([]string, 0, len(available))
	for _, c := range available {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"P001", "P002", "P004"}, ids)

	_, err = h.Board(ctx, "missing")
	require.ErrorIs(t, err, engine.ErrSessionNotFound)
}
