package game

import (
	"slices"
	"strings"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// ColorFor returns the palette color for the team at index
func ColorFor(index int) string {
	n := len(TeamPalette)
	return TeamPalette[((index%n)+n)%n]
}

// EvaluateAnswer suggests whether answer solves task. Text compares trimmed
// and case-insensitive, multi-choice ignores order, numbers must match exactly.
func EvaluateAnswer(task models.Task, answer models.AnswerValue) bool {
	want := task.CorrectAnswer
	if want.IsZero() || answer.IsZero() || want.Kind != answer.Kind {
		return false
	}
	switch want.Kind {
	case models.AnswerText:
		return strings.EqualFold(strings.TrimSpace(want.Text), strings.TrimSpace(answer.Text))
	case models.AnswerMultiChoice:
		a := normalizeChoices(want.Choices)
		b := normalizeChoices(answer.Choices)
		return slices.Equal(a, b)
	case models.AnswerNumeric:
		return want.Number == answer.Number
	default:
		return false
	}
}

func normalizeChoices(choices []string) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		out = append(out, strings.ToLower(strings.TrimSpace(c)))
	}
	slices.Sort(out)
	return slices.Compact(out)
}
