// Package jsontree renders decoded JSON values as an indented tree with
// per-type colours, for inspecting raw review payloads.
package jsontree

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MaxDepth bounds recursion. Decoded JSON is acyclic, but values built in
// code may not be.
const MaxDepth = 64

// Palette styles each JSON type.
type Palette struct {
	Key    lipgloss.Style
	String lipgloss.Style
	Number lipgloss.Style
	Bool   lipgloss.Style
	Null   lipgloss.Style
	Punct  lipgloss.Style
}

// DefaultPalette matches the panel theme.
func DefaultPalette() Palette {
	return Palette{
		Key:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
		String: lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Number: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBF00")),
		Bool:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C586C0")),
		Null:   lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D")).Italic(true),
		Punct:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D")),
	}
}

// PlainPalette renders without any styling.
func PlainPalette() Palette {
	s := lipgloss.NewStyle()
	return Palette{Key: s, String: s, Number: s, Bool: s, Null: s, Punct: s}
}

// Render returns the tree for v, one node per line, indented two spaces per
// level.
func Render(v any, p Palette) string {
	r := renderer{p: p, seen: map[uintptr]bool{}}
	r.node("", v, 0)
	return strings.TrimRight(r.b.String(), "\n")
}

type renderer struct {
	p    Palette
	b    strings.Builder
	seen map[uintptr]bool
}

func (r *renderer) line(depth int, s string) {
	r.b.WriteString(strings.Repeat("  ", depth))
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

// node writes v at depth; prefix (a styled key) goes before its first line.
func (r *renderer) node(prefix string, v any, depth int) {
	if depth > MaxDepth {
		r.line(depth, prefix+r.p.Punct.Render("…"))
		return
	}
	switch t := v.(type) {
	case map[string]any:
		if r.enter(t) {
			r.line(depth, prefix+r.p.Punct.Render("<cycle>"))
			return
		}
		defer r.leave(t)
		if len(t) == 0 {
			r.line(depth, prefix+r.p.Punct.Render("{}"))
			return
		}
		r.line(depth, prefix+r.p.Punct.Render("{"))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.node(r.p.Key.Render(k)+r.p.Punct.Render(": "), t[k], depth+1)
		}
		r.line(depth, r.p.Punct.Render("}"))
	case []any:
		if r.enter(t) {
			r.line(depth, prefix+r.p.Punct.Render("<cycle>"))
			return
		}
		defer r.leave(t)
		if len(t) == 0 {
			r.line(depth, prefix+r.p.Punct.Render("[]"))
			return
		}
		r.line(depth, prefix+r.p.Punct.Render("["))
		for _, item := range t {
			r.node("", item, depth+1)
		}
		r.line(depth, r.p.Punct.Render("]"))
	default:
		r.line(depth, prefix+r.scalar(v))
	}
}

func (r *renderer) scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return r.p.Null.Render("null")
	case string:
		return r.p.String.Render(strconv.Quote(t))
	case bool:
		return r.p.Bool.Render(strconv.FormatBool(t))
	case float64:
		return r.p.Number.Render(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		return r.p.Number.Render(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case int, int32, int64, uint, uint32, uint64:
		return r.p.Number.Render(fmt.Sprint(t))
	case json.Number:
		return r.p.Number.Render(t.String())
	default:
		// Structs and other Go values: show their JSON form if possible.
		if b, err := json.Marshal(t); err == nil {
			return r.p.String.Render(string(b))
		}
		return r.p.String.Render(fmt.Sprintf("%v", t))
	}
}

func (r *renderer) enter(v any) bool {
	id := reflect.ValueOf(v).Pointer()
	if id == 0 {
		return false
	}
	if r.seen[id] {
		return true
	}
	r.seen[id] = true
	return false
}

func (r *renderer) leave(v any) {
	if id := reflect.ValueOf(v).Pointer(); id != 0 {
		delete(r.seen, id)
	}
}
