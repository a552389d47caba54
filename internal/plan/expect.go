package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpectType is the value type an ExpectDefinition validates against.
type ExpectType string

const (
	ExpectString ExpectType = "string"
	ExpectNumber ExpectType = "number"
	ExpectEnum   ExpectType = "enum"
)

// ExpectDefinition describes one value a task is expected to extract.
// Polymorphic config forms (bare key vs mapping) are normalized to this
// struct once at load time; nothing downstream branches on runtime shape.
type ExpectDefinition struct {
	Key     string     `json:"key" yaml:"key"`
	Type    ExpectType `json:"type" yaml:"type"`
	Min     *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Choices []string   `json:"choices,omitempty" yaml:"choices,omitempty"`
	Confirm bool       `json:"confirm,omitempty" yaml:"confirm,omitempty"`
}

// ConfirmKey returns the derived state key that must be true before a task
// with Confirm set can complete.
func (e ExpectDefinition) ConfirmKey() string {
	return e.Key + "_confirmed"
}

// Validate checks value against the definition. It is pure and total: every
// value maps to (ok, reason). Strings always validate; numbers must parse
// and lie within the inclusive [Min, Max] range; enums match Choices
// case-insensitively.
func (e ExpectDefinition) Validate(value any) (bool, string) {
	switch e.Type {
	case ExpectNumber:
		num, err := toNumber(value)
		if err != nil {
			return false, fmt.Sprintf("'%v' is not a valid number", value)
		}
		if e.Min != nil && num < *e.Min {
			return false, fmt.Sprintf("value %v is below minimum %v", formatNumber(num), formatNumber(*e.Min))
		}
		if e.Max != nil && num > *e.Max {
			return false, fmt.Sprintf("value %v is above maximum %v", formatNumber(num), formatNumber(*e.Max))
		}
		return true, ""
	case ExpectEnum:
		if len(e.Choices) == 0 {
			return true, ""
		}
		s := fmt.Sprintf("%v", value)
		for _, c := range e.Choices {
			if strings.EqualFold(s, c) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("value must be one of: %s", strings.Join(e.Choices, ", "))
	default:
		return true, ""
	}
}

func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", value)
	}
}

// formatNumber renders integral floats without a trailing ".0" so error
// messages read "150 is above maximum 120" rather than "150.0".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
