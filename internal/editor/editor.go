// Package editor models the host editor environment the controller reads
// code from: the active document, its selection, and a toast primitive.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Document is a snapshot of the active editor.
type Document interface {
	FullText() string
	SelectedText() string
	LanguageID() string
	FilePath() string
}

// Editor is the collaborator the host controller depends on.
type Editor interface {
	// ActiveDocument returns false when no editor is open.
	ActiveDocument() (Document, bool)
	// ShowError shows a one-shot, user-facing notice.
	ShowError(message string)
}

// Selection marks part of a document. Text, when set, wins over the line
// range. Lines are 1-based and inclusive; EndLine 0 means StartLine only.
type Selection struct {
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
	Text      string `json:"selection,omitempty"`
}

// Empty reports whether the selection selects nothing.
func (s Selection) Empty() bool {
	return s.Text == "" && s.StartLine <= 0
}

// Workspace is a file-backed Editor: one active file path plus an optional
// selection. The file is re-read on every ActiveDocument call so edits
// made in the real editor are picked up.
type Workspace struct {
	mu       sync.Mutex
	path     string
	sel      Selection
	language string
	notify   func(string)
	readFile func(string) ([]byte, error)
}

// NewWorkspace returns a workspace with no active document. notify may be
// nil.
func NewWorkspace(notify func(string)) *Workspace {
	return &Workspace{notify: notify, readFile: os.ReadFile}
}

// Open makes path the active document. languageID may be empty to derive
// it from the file extension.
func (w *Workspace) Open(path string, sel Selection, languageID string) error {
	p := strings.TrimSpace(path)
	if p == "" {
		return fmt.Errorf("open: empty path")
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = p
	w.sel = sel
	w.language = strings.TrimSpace(languageID)
	return nil
}

// Select changes the selection of the active document.
func (w *Workspace) Select(sel Selection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sel = sel
}

// Close clears the active document.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = ""
	w.sel = Selection{}
	w.language = ""
}

// Path is the active file, or "".
func (w *Workspace) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// ActiveDocument reads the active file. A file that cannot be read counts
// as no open editor.
func (w *Workspace) ActiveDocument() (Document, bool) {
	w.mu.Lock()
	path, sel, lang, read := w.path, w.sel, w.language, w.readFile
	w.mu.Unlock()

	if path == "" {
		return nil, false
	}
	raw, err := read(path)
	if err != nil {
		return nil, false
	}
	if lang == "" {
		lang = LanguageID(path)
	}
	text := string(raw)
	return snapshot{
		path:     path,
		text:     text,
		selected: selectText(text, sel),
		language: lang,
	}, true
}

// ShowError forwards to the notifier.
func (w *Workspace) ShowError(message string) {
	w.mu.Lock()
	notify := w.notify
	w.mu.Unlock()
	if notify != nil {
		notify(message)
	}
}

type snapshot struct {
	path     string
	text     string
	selected string
	language string
}

func (s snapshot) FullText() string     { return s.text }
func (s snapshot) SelectedText() string { return s.selected }
func (s snapshot) LanguageID() string   { return s.language }
func (s snapshot) FilePath() string     { return s.path }

// StaticDocument is a fixed in-memory Document.
type StaticDocument struct {
	Path     string
	Text     string
	Selected string
	Language string
}

func (d StaticDocument) FullText() string     { return d.Text }
func (d StaticDocument) SelectedText() string { return d.Selected }
func (d StaticDocument) LanguageID() string   { return d.Language }
func (d StaticDocument) FilePath() string     { return d.Path }

func selectText(text string, sel Selection) string {
	if sel.Text != "" {
		return sel.Text
	}
	if sel.StartLine <= 0 {
		return ""
	}
	lines := strings.SplitAfter(text, "\n")
	start := sel.StartLine
	end := sel.EndLine
	if end < start {
		end = start
	}
	if start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.TrimSuffix(strings.Join(lines[start-1:end], ""), "\n")
}
