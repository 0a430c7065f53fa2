package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func viewSession(t *testing.T) (Session, *testCatalog) {
	t.Helper()
	cat := newTestCatalog(
		testPlayer{"E100", "RB", 1},
		testPlayer{"E200", "WR", 2},
		testPlayer{"E300", "QB", 3},
		testPlayer{"E400", "RB", 0},
		testPlayer{"E500", "TE", 5},
	)
	cat.inactive["E500"] = true

	s := newTestSession(t, []string{"A", "B"}, 2)
	at := time.Unix(100, 0)
	s = mustApply(t, s, Command{Type: CmdStart, At: at}, cat)
	s = mustApply(t, s, Command{Type: CmdSubmitPick, PickNumber: 1, EntityID: "E100", TeamID: "A", At: at}, cat)
	s = mustApply(t, s, Command{Type: CmdSubmitPick, PickNumber: 2, EntityID: "E300", TeamID: "B", At: at}, cat)
	s = mustApply(t, s, Command{Type: CmdAutoPick, PickNumber: 3, EntityID: "E400", At: at}, cat)
	return s, cat
}

func TestBuildBoard_GroupsSlotsByRound(t *testing.T) {
	s, _ := viewSession(t)

	board := BuildBoard(s)
	require.Len(t, board, 2)
	require.Equal(t, 1, board[0].Round)
	require.Equal(t, 2, board[1].Round)

	require.Len(t, board[0].Picks, 2)
	require.Equal(t, "E100", board[0].Picks[0].EntityID)
	require.Equal(t, "E300", board[0].Picks[1].EntityID)

	// round two reverses: B then A, and pick 4 is still open
	require.Equal(t, "B", board[1].Picks[0].TeamID)
	require.Equal(t, "E400", board[1].Picks[0].EntityID)
	require.Equal(t, SourceAuto, board[1].Picks[0].Source)
	require.Equal(t, 4, board[1].Picks[1].PickNumber)
	require.False(t, board[1].Picks[1].Filled())
}

func TestBuildTeamSummary(t *testing.T) {
	s, cat := viewSession(t)

	b, err := BuildTeamSummary(s, cat, "B")
	require.NoError(t, err)
	require.Len(t, b.Picks, 2)
	require.Equal(t, map[string]int{"QB": 1, "RB": 1}, b.Positions)
	require.Equal(t, 0, b.Remaining)

	a, err := BuildTeamSummary(s, cat, "A")
	require.NoError(t, err)
	require.Len(t, a.Picks, 1)
	require.Equal(t, 1, a.Remaining)

	_, err = BuildTeamSummary(s, cat, "Z")
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestAvailable_ExcludesDraftedAndInactive(t *testing.T) {
	s, cat := viewSession(t)

	got := Available(s, cat, NewPicker(nil))
	require.Len(t, got, 1)
	require.Equal(t, "E200", got[0].ID)

	fresh := newTestSession(t, []string{"A", "B"}, 2)
	ids := []string{}
	for _, c := range Available(fresh, cat, NewPicker(nil)) {
		ids = append(ids, c.ID)
	}
	// unranked E400 sorts last
	require.Equal(t, []string{"E100", "E200", "E300", "E400"}, ids)
	require.Empty(t, Available(fresh, nil, NewPicker(nil)))
}
