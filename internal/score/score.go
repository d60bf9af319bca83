// Package score turns raw review scores into display values: normalization
// of the dual 0–1 / 0–100 scale, qualitative labels, and the eased animation
// from one displayed set of scores to the next.
package score

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Category names used in scores_by_category.
const (
	Bug             = "bug"
	Maintainability = "maintainability"
	Style           = "style"
	Security        = "security"
)

// CategoryNames lists the categories in display order.
func CategoryNames() []string {
	return []string{Bug, Maintainability, Style, Security}
}

// Set is one overall score plus the four category scores, all in [0,100].
type Set struct {
	Overall         int `json:"overall"`
	Bug             int `json:"bug"`
	Maintainability int `json:"maintainability"`
	Style           int `json:"style"`
	Security        int `json:"security"`
}

// Category returns the named category score, or 0 for unknown names.
func (s Set) Category(name string) int {
	switch name {
	case Bug:
		return s.Bug
	case Maintainability:
		return s.Maintainability
	case Style:
		return s.Style
	case Security:
		return s.Security
	default:
		return 0
	}
}

// Normalize maps a raw score onto an integer in [0,100]. Non-numeric input
// counts as 0. Values within [0,1] are treated as fractions, which makes a
// genuine "1 out of 100" indistinguishable from 100%; that ambiguity comes
// from the review service and is kept as is.
func Normalize(raw any) int {
	v := asFloat(raw)
	if math.IsNaN(v) {
		return 0
	}
	if v >= 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return int(math.Round(v))
}

// Label gives the qualitative label for an overall score.
func Label(s int) string {
	switch {
	case s >= 90:
		return "Excellent"
	case s >= 70:
		return "Good"
	case s >= 40:
		return "Okay"
	case s > 0:
		return "Needs Work"
	default:
		return "—"
	}
}

// FromResult computes the target scores from an arbitrary review result.
// Missing or oddly shaped fields count as zero.
func FromResult(result any) Set {
	obj, ok := result.(map[string]any)
	if !ok {
		return Set{}
	}
	cats, _ := obj["scores_by_category"].(map[string]any)
	return Set{
		Overall:         Normalize(obj["quality_score"]),
		Bug:             Normalize(cats[Bug]),
		Maintainability: Normalize(cats[Maintainability]),
		Style:           Normalize(cats[Style]),
		Security:        Normalize(cats[Security]),
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
