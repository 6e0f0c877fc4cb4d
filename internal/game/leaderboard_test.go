package game

import (
	"testing"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

func TestGetEliminationLeaderboard(t *testing.T) {
	teams := []models.Team{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	g := models.Game{
		TeamCaptureCount: map[string]int{"A": 3, "B": 5, "C": 5, "D": 1},
	}

	got := GetEliminationLeaderboard(g, teams)
	want := []string{"B", "C", "A", "D"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].Team.ID != id {
			t.Errorf("rank %d = %s, want %s", i+1, got[i].Team.ID, id)
		}
	}
	if got[0].CaptureCount != 5 || got[3].CaptureCount != 1 {
		t.Errorf("counts = %d..%d", got[0].CaptureCount, got[3].CaptureCount)
	}
}

func TestLeaderboardListsCapturedTasks(t *testing.T) {
	g := testGame(t)
	g, _ = CaptureTask(g, "T3", "B")
	g, _ = CaptureTask(g, "T1", "B")

	board := GetEliminationLeaderboard(g, g.Teams)
	if board[0].Team.ID != "B" {
		t.Fatalf("leader = %s, want B", board[0].Team.ID)
	}
	if tasks := board[0].CapturedTasks; len(tasks) != 2 || tasks[0] != "T1" || tasks[1] != "T3" {
		t.Errorf("CapturedTasks = %v", tasks)
	}
	if board[0].Color != TeamPalette[1] {
		t.Errorf("Color = %q", board[0].Color)
	}
	if board[1].Team.ID != "A" || board[2].Team.ID != "C" {
		t.Errorf("tie order = %s, %s", board[1].Team.ID, board[2].Team.ID)
	}
}
