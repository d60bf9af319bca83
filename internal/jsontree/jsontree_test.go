package jsontree

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNested(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{"b":[true,null,"x"],"a":1.5,"c":{},"d":[]}`), &v))

	want := strings.Join([]string{
		`{`,
		`  a: 1.5`,
		`  b: [`,
		`    true`,
		`    null`,
		`    "x"`,
		`  ]`,
		`  c: {}`,
		`  d: []`,
		`}`,
	}, "\n")
	assert.Equal(t, want, Render(v, PlainPalette()))
}

func TestRenderScalars(t *testing.T) {
	p := PlainPalette()
	assert.Equal(t, "null", Render(nil, p))
	assert.Equal(t, `"Looks fine"`, Render("Looks fine", p))
	assert.Equal(t, "42", Render(42, p))
	assert.Equal(t, "0.8", Render(0.8, p))
	assert.Equal(t, "false", Render(false, p))
	assert.Equal(t, "7", Render(json.Number("7"), p))
}

func TestRenderDeepNestingIsCapped(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < MaxDepth+10; i++ {
		v = []any{v}
	}
	out := Render(v, PlainPalette())
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, "leaf")
}

func TestRenderCycleGuard(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m

	out := Render(m, PlainPalette())
	assert.Contains(t, out, "self: <cycle>")
	assert.Contains(t, out, `name: "root"`)
}

func TestRenderSharedSiblingsAreNotCycles(t *testing.T) {
	shared := map[string]any{"k": 1}
	v := map[string]any{"left": shared, "right": shared}

	out := Render(v, PlainPalette())
	assert.NotContains(t, out, "<cycle>")
	assert.Equal(t, 2, strings.Count(out, "k: 1"))
}
