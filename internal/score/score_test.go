package score

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"fraction", 0.85, 85},
		{"already scaled", 85, 85},
		{"float scaled", 85.0, 85},
		{"above range", 150, 100},
		{"negative", -5, 0},
		{"not a number", "not a number", 0},
		{"numeric string fraction", "0.5", 50},
		{"numeric string scaled", " 72 ", 72},
		{"json number", json.Number("0.333"), 33},
		{"rounds half up", 0.125, 13},
		{"exactly one is a fraction", 1, 100},
		{"zero", 0, 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"map", map[string]any{"x": 1}, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestLabelThresholds(t *testing.T) {
	cases := map[int]string{
		100: "Excellent",
		90:  "Excellent",
		89:  "Good",
		70:  "Good",
		69:  "Okay",
		40:  "Okay",
		39:  "Needs Work",
		1:   "Needs Work",
		0:   "—",
		-3:  "—",
	}
	for in, want := range cases {
		assert.Equal(t, want, Label(in), "Label(%d)", in)
	}
}

func TestFromResult(t *testing.T) {
	var result any
	require.NoError(t, json.Unmarshal([]byte(`{
		"quality_score": 0.8,
		"scores_by_category": {"bug": 90, "maintainability": 0.5, "style": 70, "security": 100},
		"review_summary": "Looks fine"
	}`), &result))

	got := FromResult(result)
	assert.Equal(t, Set{Overall: 80, Bug: 90, Maintainability: 50, Style: 70, Security: 100}, got)
	assert.Equal(t, 50, got.Category(Maintainability))
	assert.Equal(t, 0, got.Category("performance"))
}

func TestFromResultToleratesOddShapes(t *testing.T) {
	assert.Equal(t, Set{}, FromResult(nil))
	assert.Equal(t, Set{}, FromResult("just text"))
	assert.Equal(t, Set{}, FromResult([]any{1, 2}))
	assert.Equal(t, Set{Overall: 40}, FromResult(map[string]any{
		"quality_score":      "40",
		"scores_by_category": []any{"bug"},
	}))
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, Smoothstep(-1))
	assert.Equal(t, 0.0, Smoothstep(0))
	assert.Equal(t, 0.5, Smoothstep(0.5))
	assert.Equal(t, 1.0, Smoothstep(1))
	assert.Equal(t, 1.0, Smoothstep(2))
	assert.InDelta(t, 0.104, Smoothstep(0.2), 1e-9)
}

func TestInterpolate(t *testing.T) {
	d := 600 * time.Millisecond
	assert.Equal(t, 0, Interpolate(0, 80, 0, d))
	assert.Equal(t, 40, Interpolate(0, 80, 300*time.Millisecond, d))
	assert.Equal(t, 80, Interpolate(0, 80, d, d))
	assert.Equal(t, 80, Interpolate(0, 80, 2*d, d))
	assert.Equal(t, 80, Interpolate(0, 80, time.Millisecond, 0))
	assert.Equal(t, 60, Interpolate(100, 20, 300*time.Millisecond, d))
}

func TestAnimationMonotonicTowardTarget(t *testing.T) {
	a := NewAnimation(0, 0)
	start := time.Unix(0, 0)
	target := Set{Overall: 80, Bug: 90, Maintainability: 50, Style: 70, Security: 100}
	gen := a.Start(Set{}, target, start)

	prev := Set{}
	for now := start; ; now = now.Add(a.Frame) {
		s, done, ok := a.Sample(gen, now)
		require.True(t, ok)
		assert.GreaterOrEqual(t, s.Overall, prev.Overall)
		assert.GreaterOrEqual(t, s.Security, prev.Security)
		assert.LessOrEqual(t, s.Overall, 100)
		prev = s
		if done {
			break
		}
	}
	assert.Equal(t, target, prev)

	_, _, ok := a.Sample(gen, start.Add(time.Hour))
	assert.False(t, ok, "finished animation accepts no more frames")
}

func TestAnimationStaleGenerationRejected(t *testing.T) {
	a := NewAnimation(100*time.Millisecond, 10*time.Millisecond)
	now := time.Unix(0, 0)
	first := a.Start(Set{}, Set{Overall: 50}, now)
	second := a.Start(Set{}, Set{Overall: 90}, now)
	require.NotEqual(t, first, second)

	_, _, ok := a.Sample(first, now.Add(50*time.Millisecond))
	assert.False(t, ok)

	s, done, ok := a.Sample(second, now.Add(time.Second))
	assert.True(t, ok)
	assert.True(t, done)
	assert.Equal(t, 90, s.Overall)

	third := a.Start(Set{}, Set{Overall: 10}, now)
	a.Stop()
	_, _, ok = a.Sample(third, now.Add(time.Millisecond))
	assert.False(t, ok)
}
