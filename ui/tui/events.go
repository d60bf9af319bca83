package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reviewpanel/internal/host"
	"reviewpanel/internal/protocol"
)

// eventLogger appends session events to events.jsonl, one JSON object per
// line with a monotonically increasing seq.
type eventLogger struct {
	path string
	log  *zap.Logger
	file *os.File
	seq  atomic.Uint64
}

func newEventLogger(stateDir string, sessionID string) *eventLogger {
	if sessionID == "" {
		sessionID = "sess_unknown"
	}
	dir := filepath.Join(stateDir, sessionID)
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, "events.jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &eventLogger{path: path, log: zap.NewNop()}
	}
	l := newEventLoggerWithCore(path, zapcore.NewCore(eventEncoder(), zapcore.Lock(f), zapcore.DebugLevel))
	l.file = f
	return l
}

func newEventLoggerWithCore(path string, core zapcore.Core) *eventLogger {
	return &eventLogger{path: path, log: zap.New(core)}
}

func eventEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		MessageKey:     "type",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339Nano),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewJSONEncoder(cfg)
}

func (l *eventLogger) Append(source string, eventType string, payload any, correlationID string, causationID string) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.Uint64("seq", l.seq.Add(1)),
		zap.String("source", source),
		zap.Reflect("payload", payload),
	}
	if correlationID != "" {
		fields = append(fields, zap.String("correlation_id", correlationID))
	}
	if causationID != "" {
		fields = append(fields, zap.String("causation_id", causationID))
	}
	l.log.Info(eventType, fields...)
}

// traceProtocol records every controller message as its wire envelope.
func (l *eventLogger) traceProtocol(d host.Direction, msg protocol.Message) {
	if l == nil {
		return
	}
	raw, err := protocol.Encode(msg)
	if err != nil {
		l.Append("host", "protocol.encode_failed", map[string]any{"error": err.Error()}, "", "")
		return
	}
	l.Append("host", "protocol."+string(d), json.RawMessage(raw), "", "")
}

func (l *eventLogger) Close() {
	if l == nil {
		return
	}
	_ = l.log.Sync()
	if l.file != nil {
		_ = l.file.Close()
	}
}

type alertSeverity string

const (
	alertInfo  alertSeverity = "INFO"
	alertWarn  alertSeverity = "WARN"
	alertError alertSeverity = "ERROR"
)

type systemAlert struct {
	At            string         `json:"at"`
	Severity      alertSeverity  `json:"severity"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	Context       map[string]any `json:"context,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

func newCorrelationID() string {
	return uuid.NewString()
}
