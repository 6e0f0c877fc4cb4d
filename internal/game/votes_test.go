package game

import (
	"testing"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

func votes(answers ...models.AnswerValue) []models.Vote {
	out := make([]models.Vote, len(answers))
	for i, a := range answers {
		out[i] = models.Vote{DeviceID: string(rune('a' + i)), TaskID: "T1", Answer: a}
	}
	return out
}

func TestConsensusAnswer(t *testing.T) {
	tests := []struct {
		name  string
		votes []models.Vote
		want  models.AnswerValue
		ok    bool
	}{
		{"none", nil, models.AnswerValue{}, false},
		{"majority", votes(models.Text("x"), models.Text("x"), models.Text("y")), models.Text("x"), true},
		{"late majority", votes(models.Text("y"), models.Text("x"), models.Text("x")), models.Text("x"), true},
		{"tie goes to earliest", votes(models.Text("y"), models.Text("x")), models.Text("y"), true},
		{"tie after more votes", votes(models.Text("y"), models.Text("x"), models.Text("x"), models.Text("y")), models.Text("y"), true},
		{"choices ignore order", votes(models.MultiChoice("a", "b"), models.MultiChoice("b", "a"), models.MultiChoice("c")), models.MultiChoice("a", "b"), true},
		{"numbers", votes(models.Numeric(3), models.Numeric(4), models.Numeric(4)), models.Numeric(4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConsensusAnswer(tt.votes)
			if ok != tt.ok || !got.Equal(tt.want) {
				t.Errorf("ConsensusAnswer() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
