package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/host"
	"reviewpanel/internal/jsontree"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/protocol"
	"reviewpanel/internal/review"
	"reviewpanel/internal/score"
)

// headlessSurface applies controller messages to a panel state without a
// terminal UI and echoes progress.
type headlessSurface struct {
	state    *panel.State
	progress io.Writer
}

func (h *headlessSurface) Post(msg protocol.Message) {
	h.state.Receive(msg, time.Now())
	if p, ok := msg.(protocol.AnalyzeProgress); ok && h.progress != nil {
		fmt.Fprintln(h.progress, p.Status)
	}
}

func (h *headlessSurface) Reveal() {}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var err error
	logger, err = newLogger("")
	if err != nil {
		return err
	}
	sel, err := parseLines(linesFlag)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	color, _ := cmd.Flags().GetBool("color")

	model := cfg.DefaultModel
	if model == "" && len(cfg.Models) > 0 {
		model = cfg.Models[0]
	}

	client := review.NewClient(cfg.Endpoint, review.WithTimeout(cfg.GetTimeout()), review.WithLogger(logger))
	st, err := analyzeFile(cmd.Context(), cmd.ErrOrStderr(), client, args[0], sel, languageFlag, model)
	if err != nil {
		return err
	}

	if asJSON {
		result, _ := st.Result()
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	}

	style := cfg.Markdown.Style
	palette := jsontree.DefaultPalette()
	if !color {
		style = "notty"
		palette = jsontree.PlainPalette()
	}
	return writeReport(cmd.OutOrStdout(), st, newMarkdownRenderer(style, cfg.Markdown.WordWrap), palette)
}

// analyzeFile runs one review of path through the controller and returns
// the resulting panel state.
func analyzeFile(ctx context.Context, progress io.Writer, reviewer host.Reviewer, path string, sel editor.Selection, languageID, model string) (*panel.State, error) {
	var notice string
	ws := editor.NewWorkspace(func(msg string) { notice = msg })
	if err := ws.Open(path, sel, languageID); err != nil {
		return nil, err
	}
	if _, ok := ws.ActiveDocument(); !ok {
		return nil, fmt.Errorf("cannot read %s", path)
	}

	surface := &headlessSurface{
		state:    panel.New(model, score.NewAnimation(0, 0)),
		progress: progress,
	}
	ctl := host.NewController(ws, host.NewRegistry(func(func()) host.Surface { return surface }), reviewer,
		host.WithLogger(logger),
	)

	if !ctl.TriggerAnalysis() {
		return nil, errors.New(notice)
	}
	msg, ok := surface.state.Submit()
	if !ok {
		return nil, errors.New(surface.state.Status)
	}
	ctl.Handle(ctx, msg)

	if surface.state.IsError {
		return nil, errors.New(surface.state.Status)
	}
	return surface.state, nil
}

// writeReport prints final scores, the review and the raw result.
func writeReport(w io.Writer, st *panel.State, md *markdownRenderer, palette jsontree.Palette) error {
	result, _ := st.Result()
	t := st.Target

	var b strings.Builder
	fmt.Fprintf(&b, "File:    %s (%s, %s)\n", st.Payload.FilePath, st.Payload.LanguageID, st.Payload.Mode)
	fmt.Fprintf(&b, "Model:   %s\n", st.Model)
	fmt.Fprintf(&b, "Overall: %d  %s\n", t.Overall, score.Label(t.Overall))
	for _, name := range score.CategoryNames() {
		fmt.Fprintf(&b, "  %-16s %3d\n", name, t.Category(name))
	}
	if review := strings.TrimSpace(st.ReviewText()); review != "" {
		b.WriteString("\nReview:\n")
		b.WriteString(md.Render(review))
		b.WriteString("\n")
	}
	b.WriteString("\nRaw result:\n")
	b.WriteString(jsontree.Render(result, palette))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
