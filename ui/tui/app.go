package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reviewpanel/internal/config"
	"reviewpanel/internal/editor"
	"reviewpanel/internal/host"
	"reviewpanel/internal/review"
)

const appVersion = "v0.4.0"

var (
	verbose         bool
	smoke           bool
	serve           bool
	sessionOverride string
	configPath      string
	stateDirFlag    string
	endpointFlag    string
	modelFlag       string
	linesFlag       string
	languageFlag    string

	cfg      *config.Config
	stateDir string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reviewpanel [file]",
	Short: "Terminal code review panel",
	Long: `reviewpanel sends code from your editor to a review service and shows
quality scores, a written review and the raw result in a terminal panel.

Editors drive it through commands.jsonl in the session directory; run
without a file to wait for an "open" command.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stateDir = strings.TrimSpace(stateDirFlag)
		if stateDir == "" {
			stateDir = os.Getenv("REVIEWPANEL_STATE_DIR")
		}
		if strings.TrimSpace(stateDir) == "" {
			stateDir = ".reviewpanel"
		}
		var err error
		cfg, err = config.Load(resolvedConfigPath())
		if err != nil {
			return err
		}
		return applyFlagOverrides(cfg, endpointFlag, modelFlag)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runTUI,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Review one file (or a line range of it) and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration, or save it with --write",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "reviewpanel "+appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <state-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "", "State directory (default: $REVIEWPANEL_STATE_DIR or .reviewpanel)")
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "Review service base URL")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to preselect")
	rootCmd.PersistentFlags().StringVar(&linesFlag, "lines", "", "Select a line range of the file, e.g. 10:24")
	rootCmd.PersistentFlags().StringVar(&languageFlag, "language", "", "Language id (default: from the file extension)")

	rootCmd.Flags().BoolVar(&smoke, "smoke", false, "run deterministic non-interactive smoke simulation")
	rootCmd.Flags().BoolVar(&serve, "serve", false, "run headless command-bus driven session")
	rootCmd.Flags().StringVar(&sessionOverride, "session-id", "", "override session id")

	analyzeCmd.Flags().Bool("json", false, "Print the raw result as JSON")
	analyzeCmd.Flags().Bool("color", false, "Colour the output")
	configCmd.Flags().Bool("write", false, "Write the effective configuration to the config file")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(stateDir, "config.yaml")
}

// applyFlagOverrides layers --endpoint and --model over the loaded config.
// The model must be one of the configured models.
func applyFlagOverrides(c *config.Config, endpoint, model string) error {
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		c.Endpoint = strings.TrimRight(endpoint, "/")
	}
	if model = strings.TrimSpace(model); model != "" {
		if !c.HasModel(model) {
			return fmt.Errorf("unknown model %q (configured: %s)", model, strings.Join(c.Models, ", "))
		}
		c.DefaultModel = model
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	write, _ := cmd.Flags().GetBool("write")
	if write {
		path := resolvedConfigPath()
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote "+path)
		return nil
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// newLogger builds the diagnostic logger. The TUI owns the terminal, so it
// logs to a file; an empty path logs to stderr.
func newLogger(path string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		zc.OutputPaths = []string{path}
		zc.ErrorOutputPaths = []string{path}
	}
	if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func parseLines(s string) (editor.Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return editor.Selection{}, nil
	}
	var start, end int
	if _, err := fmt.Sscanf(s, "%d:%d", &start, &end); err != nil {
		if _, err := fmt.Sscanf(s, "%d", &start); err != nil {
			return editor.Selection{}, fmt.Errorf("invalid --lines %q: want START:END", s)
		}
		end = start
	}
	if start <= 0 || end < start {
		return editor.Selection{}, fmt.Errorf("invalid --lines %q: want 1 <= START <= END", s)
	}
	return editor.Selection{StartLine: start, EndLine: end}, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	sessionID := strings.TrimSpace(sessionOverride)
	if sessionID == "" {
		if config.EnvBool("REVIEWPANEL_RESUME") {
			sessionID, _ = getOrCreateSessionID(stateDir)
		} else {
			sessionID, _ = createNewSessionID(stateDir)
			_ = setCurrentSessionID(stateDir, sessionID)
		}
	}

	var err error
	logger, err = newLogger(filepath.Join(stateDir, sessionID, "reviewpanel.log"))
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("session", sessionID))

	sel, err := parseLines(linesFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := newEventLogger(stateDir, sessionID)
	defer events.Close()

	appCfg := appConfig{
		stateDir:      stateDir,
		sessionID:     sessionID,
		version:       appVersion,
		endpoint:      cfg.Endpoint,
		models:        cfg.Models,
		defaultModel:  cfg.DefaultModel,
		animDuration:  cfg.GetAnimationDuration(),
		animFrame:     cfg.GetAnimationFrame(),
		commandsPath:  filepath.Join(stateDir, sessionID, "commands.jsonl"),
		markdownStyle: cfg.Markdown.Style,
		wordWrap:      cfg.Markdown.WordWrap,
	}

	var reviewer host.Reviewer = review.NewClient(cfg.Endpoint,
		review.WithTimeout(cfg.GetTimeout()),
		review.WithLogger(logger),
	)

	if smoke {
		if !config.EnvBool("REVIEWPANEL_SMOKE_NETWORK") {
			reviewer = cannedReviewer{}
		}
		return runSmokeCommand(ctx, cmd.OutOrStdout(), appCfg, reviewer, events)
	}

	relay := &programRelay{}
	ws := editor.NewWorkspace(func(msg string) { relay.Send(toastMsg{text: msg}) })
	if len(args) == 1 {
		if err := ws.Open(args[0], sel, languageFlag); err != nil {
			return err
		}
	}
	registry := host.NewRegistry(surfaceFactory(relay))
	ctl := host.NewController(ws, registry, reviewer,
		host.WithLogger(logger),
		host.WithTrace(events.traceProtocol),
	)

	m := newAppModel(appCfg, appDeps{
		link:      asyncLink{ctx: ctx, ctl: ctl},
		workspace: ws,
		log:       logger,
		events:    events,
	})

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if serve {
		opts = []tea.ProgramOption{
			tea.WithContext(ctx),
			tea.WithoutRenderer(),
			tea.WithInput(bytes.NewReader(nil)),
			tea.WithOutput(io.Discard),
		}
	}
	p := tea.NewProgram(m, opts...)
	relay.attach(p)

	if bw, err := newBusWatcher(appCfg.commandsPath, relay, logger); err != nil {
		logger.Warn("command bus watcher unavailable, polling only", zap.Error(err))
	} else {
		go bw.Run(ctx)
		defer bw.Close()
	}

	logger.Info("session started", zap.String("endpoint", cfg.Endpoint), zap.Bool("serve", serve))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if am, ok := finalModel.(appModel); ok {
		writeSessionSummary(am)
	}
	return nil
}

func getOrCreateSessionID(stateDir string) (string, error) {
	current := readCurrentState(stateDir)
	if v, ok := current["sessionId"].(string); ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	id, _ := createNewSessionID(stateDir)
	return id, setCurrentSessionID(stateDir, id)
}

func createNewSessionID(stateDir string) (string, error) {
	id := "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return id, os.MkdirAll(filepath.Join(stateDir, id), 0o755)
}

func setCurrentSessionID(stateDir string, sessionID string) error {
	currentPath := filepath.Join(stateDir, "state", "current.json")
	_ = os.MkdirAll(filepath.Dir(currentPath), 0o755)

	current := readCurrentState(stateDir)
	current["sessionId"] = sessionID
	current["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
	b, _ := json.MarshalIndent(current, "", "  ")
	return os.WriteFile(currentPath, append(b, '\n'), 0o644)
}

func readCurrentState(stateDir string) map[string]any {
	var current map[string]any
	if raw, err := os.ReadFile(filepath.Join(stateDir, "state", "current.json")); err == nil {
		_ = json.Unmarshal(raw, &current)
	}
	if current == nil {
		current = map[string]any{"schemaVersion": 1}
	}
	return current
}
