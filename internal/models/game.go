package models

import (
	"maps"
	"slices"
	"time"
)

// TaskType decides how a task is answered
type TaskType string

const (
	TaskText           TaskType = "text"
	TaskMultipleChoice TaskType = "multiple_choice"
	TaskCheckbox       TaskType = "checkbox"
	TaskNumber         TaskType = "number"
)

// Task is the question attached to a point
type Task struct {
	Type              TaskType    `json:"type"`
	Question          string      `json:"question"`
	Options           []string    `json:"options,omitempty"`
	CorrectAnswer     AnswerValue `json:"correctAnswer"`
	Points            int         `json:"points"`
	RequiresConsensus bool        `json:"requiresConsensus,omitempty"` // agreed answer is the team's modal vote
}

// Point is a geolocated task. Whether it is captured is derived from
// Game.CapturedTasks, never stored here.
type Point struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Location Location `json:"location"`
	Task     Task     `json:"task"`
}

// FailedAttempt bars a team from a task until CooldownUntil
type FailedAttempt struct {
	TaskID        string    `json:"taskId"`
	TeamID        string    `json:"teamId"`
	Timestamp     time.Time `json:"timestamp"`
	CooldownUntil time.Time `json:"cooldownUntil"`
}

// Bomb is a time-limited danger zone placed by a team
type Bomb struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	Location    Location  `json:"location"`
	Duration    int       `json:"durationSeconds"`
	CreatedAt   time.Time `json:"createdAt"`
	DetonatesAt time.Time `json:"detonatesAt"`
}

// Game is the authoritative session document
type Game struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Mode   GameMode   `json:"mode"`
	Status GameStatus `json:"status"`
	Points []Point    `json:"points"`
	Teams  []Team     `json:"teams"`

	CapturedTasks    map[string]string `json:"capturedTasks"`    // taskID -> owning teamID
	TeamCaptureCount map[string]int    `json:"teamCaptureCount"` // teamID -> captures
	FailedAttempts   []FailedAttempt   `json:"failedAttempts"`
	Bombs            []Bomb            `json:"bombs"`
	TeamColors       map[string]string `json:"teamColors"` // teamID -> display color
}

// Clone returns a deep copy so mutators never share state with their input
func (g Game) Clone() Game {
	out := g
	out.Points = make([]Point, len(g.Points))
	for i, p := range g.Points {
		p.Task.Options = slices.Clone(p.Task.Options)
		p.Task.CorrectAnswer.Choices = slices.Clone(p.Task.CorrectAnswer.Choices)
		out.Points[i] = p
	}
	out.Teams = make([]Team, len(g.Teams))
	for i, t := range g.Teams {
		t.Members = slices.Clone(t.Members)
		out.Teams[i] = t
	}
	out.CapturedTasks = cloneMap(g.CapturedTasks)
	out.TeamCaptureCount = cloneMap(g.TeamCaptureCount)
	out.TeamColors = cloneMap(g.TeamColors)
	out.FailedAttempts = slices.Clone(g.FailedAttempts)
	out.Bombs = slices.Clone(g.Bombs)
	return out
}

// Point looks up a point by ID
func (g Game) Point(id string) (Point, bool) {
	for _, p := range g.Points {
		if p.ID == id {
			return p, true
		}
	}
	return Point{}, false
}

// Team looks up a team by ID
func (g Game) Team(id string) (Team, bool) {
	for _, t := range g.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}
