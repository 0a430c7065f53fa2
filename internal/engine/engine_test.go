package engine

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testPlayer struct {
	id       string
	position string
	adp      float64
}

type testCatalog struct {
	players  map[string]testPlayer
	inactive map[string]bool
}

func newTestCatalog(players ...testPlayer) *testCatalog {
	c := &testCatalog{players: map[string]testPlayer{}, inactive: map[string]bool{}}
	for _, p := range players {
		c.players[p.id] = p
	}
	return c
}

func (c *testCatalog) IsAvailable(id string) bool {
	_, ok := c.players[id]
	return ok && !c.inactive[id]
}

func (c *testCatalog) PositionOf(id string) string { return c.players[id].position }

func (c *testCatalog) RankScore(id string) (float64, bool) {
	p, ok := c.players[id]
	return p.adp, ok && p.adp > 0
}

func (c *testCatalog) EntityIDs() []string {
	ids := make([]string, 0, len(c.players))
	for id := range c.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newTestSession(t *testing.T, order []string, rounds int) Session {
	t.Helper()
	s, err := NewSession(Config{
		ID:           "draft-1",
		TeamOrder:    order,
		Rounds:       rounds,
		PickDuration: 90 * time.Second,
		Snake:        true,
	}, time.Unix(0, 0))
	require.NoError(t, err)
	return s
}

func mustApply(t *testing.T, s Session, cmd Command, cat Catalog) Session {
	t.Helper()
	_, next, err := Apply(s, cmd, cat)
	require.NoError(t, err)
	return next
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestNewSession_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing id", cfg: Config{TeamOrder: []string{"A"}, Rounds: 1, PickDuration: time.Second}},
		{name: "no teams", cfg: Config{ID: "d", Rounds: 1, PickDuration: time.Second}},
		{name: "duplicate team", cfg: Config{ID: "d", TeamOrder: []string{"A", "A"}, Rounds: 1, PickDuration: time.Second}},
		{name: "zero rounds", cfg: Config{ID: "d", TeamOrder: []string{"A"}, PickDuration: time.Second}},
		{name: "zero duration", cfg: Config{ID: "d", TeamOrder: []string{"A"}, Rounds: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSession(tc.cfg, time.Now())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestApply_StartArmsFirstPick(t *testing.T) {
	s := newTestSession(t, []string{"A", "B"}, 2)
	at := time.Unix(100, 0)

	events, next, err := Apply(s, Command{Type: CmdStart, At: at}, nil)
	require.NoError(t, err)
	require.Equal(t, []EventType{EvtDraftStarted, EvtTurnChanged}, eventTypes(events))
	require.Equal(t, StatusInProgress, next.Status)
	require.Equal(t, 1, next.CurrentPick)
	require.Equal(t, at.Add(90*time.Second), next.DeadlineAt)
	require.Equal(t, 1, next.Version)

	turn := events[1].Payload.(TurnChanged)
	require.Equal(t, "A", turn.TeamID)

	// input session untouched
	require.Equal(t, StatusScheduled, s.Status)

	_, _, err = Apply(next, Command{Type: CmdStart, At: at}, nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestApply_SubmitPickValidation(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E100", "RB", 1}, testPlayer{"E200", "WR", 2}, testPlayer{"E300", "QB", 3})
	cat.inactive["E300"] = true
	started := mustApply(t, newTestSession(t, []string{"A", "B", "C", "D"}, 3), Command{Type: CmdStart}, cat)

	cases := []struct {
		name    string
		session Session
		cmd     Command
		wantErr error
	}{
		{
			name:    "not started",
			session: newTestSession(t, []string{"A", "B"}, 1),
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "E100"},
			wantErr: ErrInvalidState,
		},
		{
			name:    "future pick number",
			session: started,
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 5, TeamID: "B", EntityID: "E100"},
			wantErr: ErrWrongTurn,
		},
		{
			name:    "past pick number",
			session: started,
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 0, TeamID: "A", EntityID: "E100"},
			wantErr: ErrWrongTurn,
		},
		{
			name:    "other team's turn",
			session: started,
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "B", EntityID: "E100"},
			wantErr: ErrWrongTurn,
		},
		{
			name:    "unknown entity",
			session: started,
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "nobody"},
			wantErr: ErrEntityUnavailable,
		},
		{
			name:    "inactive entity",
			session: started,
			cmd:     Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "E300"},
			wantErr: ErrEntityUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.session, tc.cmd, cat)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			require.Nil(t, events)
			require.Equal(t, tc.session.Version, next.Version)
			require.Equal(t, 0, next.Ledger.Filled())
		})
	}
}

func TestApply_OverrideBypassesTeamCheckOnly(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E100", "RB", 1})
	s := mustApply(t, newTestSession(t, []string{"A", "B"}, 1), Command{Type: CmdStart}, cat)

	_, _, err := Apply(s, Command{Type: CmdSubmitPick, PickNumber: 2, TeamID: "admin", EntityID: "E100", Override: true}, cat)
	require.ErrorIs(t, err, ErrWrongTurn)

	events, next, err := Apply(s, Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "admin", EntityID: "E100", Override: true}, cat)
	require.NoError(t, err)
	made := events[0].Payload.(PickMade)
	require.Equal(t, "A", made.TeamID)
	require.Equal(t, SourceManual, made.Source)
	require.Equal(t, 2, next.CurrentPick)
}

func TestApply_DoubleDraftRejected(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E100", "RB", 1}, testPlayer{"E200", "WR", 2})
	s := mustApply(t, newTestSession(t, []string{"A", "B"}, 2), Command{Type: CmdStart}, cat)
	s = mustApply(t, s, Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "E100"}, cat)

	_, next, err := Apply(s, Command{Type: CmdSubmitPick, PickNumber: 2, TeamID: "B", EntityID: "E100"}, cat)
	require.ErrorIs(t, err, ErrEntityAlreadyTaken)
	require.Equal(t, 2, next.CurrentPick)
	require.Equal(t, 1, next.Ledger.Filled())
}

func TestApply_FullSnakeDraftCompletes(t *testing.T) {
	order := []string{"A", "B", "C", "D"}
	var players []testPlayer
	for i := 0; i < 12; i++ {
		players = append(players, testPlayer{id: string(rune('a' + i)), position: "WR", adp: float64(i + 1)})
	}
	cat := newTestCatalog(players...)
	s := mustApply(t, newTestSession(t, order, 3), Command{Type: CmdStart}, cat)

	wantTeams := []string{"A", "B", "C", "D", "D", "C", "B", "A", "A", "B", "C", "D"}
	var last []Event
	for pick := 1; pick <= 12; pick++ {
		var err error
		last, s, err = Apply(s, Command{
			Type:       CmdSubmitPick,
			PickNumber: pick,
			TeamID:     wantTeams[pick-1],
			EntityID:   players[pick-1].id,
		}, cat)
		require.NoError(t, err, "pick %d", pick)
	}

	require.Equal(t, []EventType{EvtPickMade, EvtDraftCompleted}, eventTypes(last))
	require.Equal(t, StatusCompleted, s.Status)
	require.Equal(t, 12, s.CurrentPick)
	require.True(t, s.DeadlineAt.IsZero())

	// every filled slot matches the sequencer computed from session attributes alone
	for _, slot := range s.Ledger.Slots() {
		team, err := TeamForPick(slot.PickNumber, s.TeamOrder, s.Snake)
		require.NoError(t, err)
		require.Equal(t, team, slot.TeamID)
		require.True(t, slot.Filled())
	}

	_, _, err := Apply(s, Command{Type: CmdCancel}, cat)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestApply_StallResumeAndCancel(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E1", "QB", 1})
	s := mustApply(t, newTestSession(t, []string{"A", "B"}, 1), Command{Type: CmdStart}, cat)

	_, _, err := Apply(s, Command{Type: CmdResume}, cat)
	require.ErrorIs(t, err, ErrInvalidState)

	events, stalled, err := Apply(s, Command{Type: CmdStall, Reason: "pool empty"}, cat)
	require.NoError(t, err)
	require.Equal(t, []EventType{EvtDraftStalled}, eventTypes(events))
	require.Equal(t, StatusStalled, stalled.Status)
	require.True(t, stalled.DeadlineAt.IsZero())

	_, _, err = Apply(stalled, Command{Type: CmdAutoPick, PickNumber: 1, EntityID: "E1"}, cat)
	require.ErrorIs(t, err, ErrInvalidState)

	// a manual pick clears the stall
	events, picked, err := Apply(stalled, Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "E1"}, cat)
	require.NoError(t, err)
	require.Equal(t, []EventType{EvtPickMade, EvtTurnChanged}, eventTypes(events))
	require.Equal(t, StatusInProgress, picked.Status)
	require.Empty(t, picked.StallReason)

	at := time.Unix(500, 0)
	events, resumed, err := Apply(stalled, Command{Type: CmdResume, At: at}, cat)
	require.NoError(t, err)
	require.Equal(t, []EventType{EvtDraftResumed, EvtTurnChanged}, eventTypes(events))
	require.Equal(t, at.Add(90*time.Second), resumed.DeadlineAt)

	events, cancelled, err := Apply(resumed, Command{Type: CmdCancel, At: at}, cat)
	require.NoError(t, err)
	require.Equal(t, []EventType{EvtDraftCancelled}, eventTypes(events))
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, _, err = Apply(cancelled, Command{Type: CmdResume}, cat)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestApply_VersionStampsEvents(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E1", "QB", 1})
	s := mustApply(t, newTestSession(t, []string{"A", "B"}, 1), Command{Type: CmdStart}, cat)

	events, next, err := Apply(s, Command{Type: CmdAutoPick, PickNumber: 1, EntityID: "E1"}, cat)
	require.NoError(t, err)
	require.Equal(t, 2, next.Version)
	for _, ev := range events {
		require.Equal(t, next.Version, ev.Version)
		require.Equal(t, "draft-1", ev.SessionID)
	}
	require.Equal(t, SourceAuto, events[0].Payload.(PickMade).Source)
}

func TestBuildSnapshot(t *testing.T) {
	cat := newTestCatalog(testPlayer{"E1", "QB", 1}, testPlayer{"E2", "RB", 2})
	at := time.Unix(1000, 0)
	s := mustApply(t, newTestSession(t, []string{"A", "B"}, 2), Command{Type: CmdStart, At: at}, cat)
	s = mustApply(t, s, Command{Type: CmdSubmitPick, PickNumber: 1, TeamID: "A", EntityID: "E1", At: at}, cat)

	snap := BuildSnapshot(s, at.Add(30*time.Second))
	require.Equal(t, 2, snap.CurrentPick)
	require.Equal(t, "B", snap.CurrentTeam)
	require.Len(t, snap.Picks, 1)
	require.EqualValues(t, 60_000, snap.RemainingMS)
	require.Equal(t, 4, snap.TotalPicks)
	require.Equal(t, 90, snap.PickSeconds)
}
