package game

import (
	"fmt"
	"sort"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// CaptureTask assigns taskID to teamID. It fails with ErrAlreadyCaptured when
// any team, including teamID itself, already owns the task; the input game is
// never modified.
func CaptureTask(g models.Game, taskID, teamID string) (models.Game, error) {
	if _, ok := g.Point(taskID); !ok {
		return g, fmt.Errorf("%w: %q", ErrUnknownPoint, taskID)
	}
	if owner, ok := g.CapturedTasks[taskID]; ok {
		return g, fmt.Errorf("%w: %q is held by team %q", ErrAlreadyCaptured, taskID, owner)
	}

	next := g.Clone()
	next.CapturedTasks[taskID] = teamID
	next.TeamCaptureCount[teamID]++
	return next, nil
}

// GetVisiblePointsForTeam returns the points teamID may still see: uncaptured
// ones and the ones it captured itself.
func GetVisiblePointsForTeam(g models.Game, teamID string) []models.Point {
	visible := make([]models.Point, 0, len(g.Points))
	for _, p := range g.Points {
		owner, captured := g.CapturedTasks[p.ID]
		if !captured || owner == teamID {
			visible = append(visible, p)
		}
	}
	return visible
}

// InitializeEliminationGame starts a fresh elimination match for teams.
// Calling it again wipes all capture progress.
func InitializeEliminationGame(g models.Game, teams []models.Team) models.Game {
	next := g.Clone()
	next.Mode = models.ModeElimination
	next.Teams = make([]models.Team, len(teams))
	next.TeamColors = make(map[string]string, len(teams))
	next.TeamCaptureCount = make(map[string]int, len(teams))
	next.CapturedTasks = make(map[string]string)
	next.FailedAttempts = []models.FailedAttempt{}
	next.Bombs = []models.Bomb{}

	for i, t := range teams {
		t.Members = append([]models.Member(nil), t.Members...)
		next.Teams[i] = t
		next.TeamColors[t.ID] = ColorFor(i)
		next.TeamCaptureCount[t.ID] = 0
	}
	return next
}

// GetTeamCaptureCount returns how many tasks teamID owns
func GetTeamCaptureCount(g models.Game, teamID string) int {
	return g.TeamCaptureCount[teamID]
}

// GetTeamCapturedTasks returns the IDs of tasks owned by teamID, sorted
func GetTeamCapturedTasks(g models.Game, teamID string) []string {
	tasks := make([]string, 0)
	for taskID, owner := range g.CapturedTasks {
		if owner == teamID {
			tasks = append(tasks, taskID)
		}
	}
	sort.Strings(tasks)
	return tasks
}

// ValidateCaptureCounts checks that every team's counter matches the number
// of tasks it owns.
func ValidateCaptureCounts(g models.Game) error {
	owned := make(map[string]int)
	for _, owner := range g.CapturedTasks {
		owned[owner]++
	}
	for teamID, n := range owned {
		if g.TeamCaptureCount[teamID] != n {
			return fmt.Errorf("team %q owns %d tasks but counter is %d", teamID, n, g.TeamCaptureCount[teamID])
		}
	}
	for teamID, n := range g.TeamCaptureCount {
		if n != owned[teamID] {
			return fmt.Errorf("team %q counter is %d but owns %d tasks", teamID, n, owned[teamID])
		}
	}
	return nil
}
