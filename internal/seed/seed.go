// Package seed reads game definitions written in YAML.
package seed

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

var ErrInvalid = errors.New("invalid game definition")

type gameDoc struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name"`
	Mode   string     `yaml:"mode"`
	Points []pointDoc `yaml:"points"`
	Teams  []teamDoc  `yaml:"teams"`
}

type pointDoc struct {
	ID       string          `yaml:"id"`
	Title    string          `yaml:"title"`
	Location models.Location `yaml:"location"`
	Task     taskDoc         `yaml:"task"`
}

type taskDoc struct {
	Type      string   `yaml:"type"`
	Question  string   `yaml:"question"`
	Options   []string `yaml:"options"`
	Answer    any      `yaml:"answer"`
	Points    int      `yaml:"points"`
	Consensus bool     `yaml:"consensus"`
}

type teamDoc struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Captain string      `yaml:"captain"`
	Members []memberDoc `yaml:"members"`
}

type memberDoc struct {
	Device string `yaml:"device"`
	Name   string `yaml:"name"`
}

// answerKinds lists the answer shapes each task type accepts
var answerKinds = map[models.TaskType][]models.AnswerKind{
	models.TaskText:           {models.AnswerText},
	models.TaskMultipleChoice: {models.AnswerText, models.AnswerMultiChoice},
	models.TaskCheckbox:       {models.AnswerMultiChoice},
	models.TaskNumber:         {models.AnswerNumeric},
}

// LoadFile reads and parses the definition at path
func LoadFile(path string) (models.Game, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return models.Game{}, err
	}
	g, err := Parse(buf)
	if err != nil {
		return models.Game{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse builds a game from a YAML definition. Elimination games come back
// initialized with their teams.
func Parse(buf []byte) (models.Game, error) {
	var doc gameDoc
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return models.Game{}, fmt.Errorf("parse yaml: %w", err)
	}

	g := models.Game{
		ID:     strings.TrimSpace(doc.ID),
		Name:   strings.TrimSpace(doc.Name),
		Mode:   models.GameMode(strings.ToLower(strings.TrimSpace(doc.Mode))),
		Status: models.StatusDraft,
	}
	if g.Name == "" {
		return models.Game{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch g.Mode {
	case "":
		g.Mode = models.ModeElimination
	case models.ModeClassic, models.ModeElimination:
	default:
		return models.Game{}, fmt.Errorf("%w: unknown mode %q", ErrInvalid, doc.Mode)
	}

	seen := make(map[string]bool)
	for i, pd := range doc.Points {
		p, err := buildPoint(pd)
		if err != nil {
			return models.Game{}, fmt.Errorf("%w: point %d: %v", ErrInvalid, i+1, err)
		}
		if seen[p.ID] {
			return models.Game{}, fmt.Errorf("%w: duplicate point id %q", ErrInvalid, p.ID)
		}
		seen[p.ID] = true
		g.Points = append(g.Points, p)
	}

	clear(seen)
	teams := make([]models.Team, 0, len(doc.Teams))
	for _, td := range doc.Teams {
		t := buildTeam(td)
		if t.ID == "" {
			return models.Game{}, fmt.Errorf("%w: team without id", ErrInvalid)
		}
		if seen[t.ID] {
			return models.Game{}, fmt.Errorf("%w: duplicate team id %q", ErrInvalid, t.ID)
		}
		seen[t.ID] = true
		teams = append(teams, t)
	}

	if g.Mode == models.ModeElimination {
		return game.InitializeEliminationGame(g, teams), nil
	}
	g.Teams = teams
	return g, nil
}

func buildPoint(pd pointDoc) (models.Point, error) {
	p := models.Point{
		ID:       strings.TrimSpace(pd.ID),
		Title:    strings.TrimSpace(pd.Title),
		Location: pd.Location,
	}
	if p.ID == "" {
		return p, errors.New("id is required")
	}
	tt := models.TaskType(strings.ToLower(strings.TrimSpace(pd.Task.Type)))
	if tt == "" {
		tt = models.TaskText
	}
	kinds, ok := answerKinds[tt]
	if !ok {
		return p, fmt.Errorf("unknown task type %q", pd.Task.Type)
	}
	answer, err := models.AnswerFromAny(pd.Task.Answer)
	if err != nil {
		return p, err
	}
	if !answer.IsZero() && !slices.Contains(kinds, answer.Kind) {
		return p, fmt.Errorf("%s answer for a %s task", answer.Kind, tt)
	}
	if pd.Task.Points < 0 {
		return p, fmt.Errorf("negative points %d", pd.Task.Points)
	}
	p.Task = models.Task{
		Type:              tt,
		Question:          strings.TrimSpace(pd.Task.Question),
		Options:           pd.Task.Options,
		CorrectAnswer:     answer,
		Points:            pd.Task.Points,
		RequiresConsensus: pd.Task.Consensus,
	}
	return p, nil
}

func buildTeam(td teamDoc) models.Team {
	t := models.Team{
		ID:              strings.TrimSpace(td.ID),
		Name:            strings.TrimSpace(td.Name),
		CaptainDeviceID: strings.TrimSpace(td.Captain),
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	for _, md := range td.Members {
		t.Members = append(t.Members, models.Member{DeviceID: strings.TrimSpace(md.Device), Name: strings.TrimSpace(md.Name)})
	}
	if t.CaptainDeviceID == "" && len(t.Members) > 0 {
		t.CaptainDeviceID = t.Members[0].DeviceID
	}
	return t
}
