package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AnswerKind tags which variant of AnswerValue is set
type AnswerKind string

const (
	AnswerText        AnswerKind = "text"
	AnswerMultiChoice AnswerKind = "multi_choice"
	AnswerNumeric     AnswerKind = "numeric"
)

// AnswerValue is the answer to a task: a single string, a list of strings or
// a number. The zero value means "no answer".
//
// On the JSON wire it is encoded as the bare value ("x", ["a","b"], 42).
type AnswerValue struct {
	Kind    AnswerKind `msgpack:"kind"`
	Text    string     `msgpack:"text,omitempty"`
	Choices []string   `msgpack:"choices,omitempty"`
	Number  float64    `msgpack:"number,omitempty"`
}

// Text builds a single string answer
func Text(s string) AnswerValue {
	return AnswerValue{Kind: AnswerText, Text: s}
}

// MultiChoice builds a list answer
func MultiChoice(choices ...string) AnswerValue {
	return AnswerValue{Kind: AnswerMultiChoice, Choices: slices.Clone(choices)}
}

// Numeric builds a numeric answer
func Numeric(n float64) AnswerValue {
	return AnswerValue{Kind: AnswerNumeric, Number: n}
}

// IsZero reports whether no answer is set
func (a AnswerValue) IsZero() bool {
	return a.Kind == ""
}

// Key returns a canonical string for grouping equal answers.
// Multi-choice answers are order-insensitive.
func (a AnswerValue) Key() string {
	switch a.Kind {
	case AnswerText:
		return "t:" + a.Text
	case AnswerMultiChoice:
		sorted := slices.Clone(a.Choices)
		slices.Sort(sorted)
		return "m:" + strings.Join(sorted, "\x1f")
	case AnswerNumeric:
		return "n:" + strconv.FormatFloat(a.Number, 'g', -1, 64)
	default:
		return ""
	}
}

// Equal compares two answers by their canonical key
func (a AnswerValue) Equal(b AnswerValue) bool {
	return a.Key() == b.Key()
}

func (a AnswerValue) String() string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerMultiChoice:
		return strings.Join(a.Choices, ", ")
	case AnswerNumeric:
		return strconv.FormatFloat(a.Number, 'g', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the bare variant value
func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerMultiChoice:
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	case AnswerNumeric:
		return json.Marshal(a.Number)
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown answer kind %q", a.Kind)
	}
}

// UnmarshalJSON detects the variant from the JSON type
func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := AnswerFromAny(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AnswerFromAny converts a decoded JSON/YAML value into an AnswerValue
func AnswerFromAny(v any) (AnswerValue, error) {
	switch t := v.(type) {
	case nil:
		return AnswerValue{}, nil
	case string:
		return Text(t), nil
	case float64:
		return Numeric(t), nil
	case float32:
		return Numeric(float64(t)), nil
	case int:
		return Numeric(float64(t)), nil
	case int64:
		return Numeric(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return AnswerValue{}, fmt.Errorf("answer number: %w", err)
		}
		return Numeric(f), nil
	case []string:
		return MultiChoice(t...), nil
	case []any:
		choices := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return AnswerValue{}, fmt.Errorf("answer choice %d: expected string, got %T", i, item)
			}
			choices = append(choices, s)
		}
		return MultiChoice(choices...), nil
	default:
		return AnswerValue{}, fmt.Errorf("unsupported answer type %T", v)
	}
}
