package game

import (
	"sort"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// Standing is one row of the elimination leaderboard
type Standing struct {
	Team          models.Team `json:"team"`
	Color         string      `json:"color,omitempty"`
	CaptureCount  int         `json:"captureCount"`
	CapturedTasks []string    `json:"capturedTasks"`
}

// GetEliminationLeaderboard ranks teams by capture count, highest first.
// Teams with equal counts keep their order in teams.
func GetEliminationLeaderboard(g models.Game, teams []models.Team) []Standing {
	standings := make([]Standing, len(teams))
	for i, t := range teams {
		standings[i] = Standing{
			Team:          t,
			Color:         g.TeamColors[t.ID],
			CaptureCount:  GetTeamCaptureCount(g, t.ID),
			CapturedTasks: GetTeamCapturedTasks(g, t.ID),
		}
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].CaptureCount > standings[j].CaptureCount
	})
	return standings
}
