// Package protocol defines the messages exchanged between the host
// controller and the display surface. Both directions are JSON-serializable
// through a single envelope: {"type": KIND, "payload": ...}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies a message on the panel channel.
type Kind string

const (
	// KindNewCode carries a CodePayload from the controller to the surface.
	KindNewCode Kind = "NEW_CODE"
	// KindRequestAnalyze carries an AnalyzeRequest from the surface.
	KindRequestAnalyze Kind = "REQUEST_ANALYZE"
	// KindRequestFullDocument asks the controller to resend the whole document.
	KindRequestFullDocument Kind = "REQUEST_FULL_DOCUMENT"
	// KindAnalyzeProgress carries a status string.
	KindAnalyzeProgress Kind = "ANALYZE_PROGRESS"
	// KindAnalyzeResult carries the review service response, unmodified.
	KindAnalyzeResult Kind = "ANALYZE_RESULT"
	// KindAnalyzeError carries an error string.
	KindAnalyzeError Kind = "ANALYZE_ERROR"
)

// ErrMalformed is returned by Decode when the envelope or its payload
// cannot be parsed.
var ErrMalformed = errors.New("malformed panel message")

// Mode records how a CodePayload was extracted from the editor.
type Mode string

const (
	ModeSelection Mode = "selection"
	ModeDocument  Mode = "document"
)

// CodePayload is the code captured from the active editor.
type CodePayload struct {
	Code       string `json:"code"`
	FileName   string `json:"fileName"`
	FilePath   string `json:"filePath"`
	LanguageID string `json:"languageId"`
	Mode       Mode   `json:"mode"`
}

// NewCodePayload builds a payload, deriving FileName from the path.
func NewCodePayload(code, filePath, languageID string, mode Mode) CodePayload {
	name := ""
	if strings.TrimSpace(filePath) != "" {
		name = filepath.Base(filePath)
	}
	return CodePayload{
		Code:       code,
		FileName:   name,
		FilePath:   filePath,
		LanguageID: languageID,
		Mode:       mode,
	}
}

// AnalyzeRequest is what the surface submits for review.
type AnalyzeRequest struct {
	Code       string `json:"code"`
	FilePath   string `json:"filePath"`
	LanguageID string `json:"languageId"`
	Model      string `json:"model"`
}

// Message is the tagged variant carried on the panel channel. Handlers
// switch on the concrete type and treat anything else as a no-op.
type Message interface {
	Kind() Kind
}

type NewCode struct {
	Payload CodePayload
}

type RequestAnalyze struct {
	Request AnalyzeRequest
}

type RequestFullDocument struct{}

type AnalyzeProgress struct {
	Status string
}

// AnalyzeResult holds the decoded JSON body of a successful review.
type AnalyzeResult struct {
	Result any
}

type AnalyzeError struct {
	Message string
}

// Unknown is produced by Decode for kinds this version does not know.
type Unknown struct {
	Type    string
	Payload json.RawMessage
}

func (NewCode) Kind() Kind             { return KindNewCode }
func (RequestAnalyze) Kind() Kind      { return KindRequestAnalyze }
func (RequestFullDocument) Kind() Kind { return KindRequestFullDocument }
func (AnalyzeProgress) Kind() Kind     { return KindAnalyzeProgress }
func (AnalyzeResult) Kind() Kind       { return KindAnalyzeResult }
func (AnalyzeError) Kind() Kind        { return KindAnalyzeError }
func (u Unknown) Kind() Kind           { return Kind(u.Type) }

// FromSurface reports whether messages of kind k travel from the surface
// to the controller.
func FromSurface(k Kind) bool {
	return k == KindRequestAnalyze || k == KindRequestFullDocument
}

type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals a message into its envelope.
func Encode(m Message) ([]byte, error) {
	var payload any
	switch t := m.(type) {
	case NewCode:
		payload = t.Payload
	case RequestAnalyze:
		payload = t.Request
	case RequestFullDocument:
		payload = nil
	case AnalyzeProgress:
		payload = t.Status
	case AnalyzeResult:
		payload = t.Result
	case AnalyzeError:
		payload = t.Message
	case Unknown:
		return json.Marshal(envelope{Type: Kind(t.Type), Payload: t.Payload})
	case nil:
		return nil, fmt.Errorf("encode: nil message")
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}

	env := envelope{Type: m.Kind()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope. Unknown kinds are returned as Unknown rather
// than as an error so receivers can ignore them.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(string(env.Type)) == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case KindNewCode:
		var p CodePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return NewCode{Payload: p}, nil
	case KindRequestAnalyze:
		var r AnalyzeRequest
		if err := decodePayload(env, &r); err != nil {
			return nil, err
		}
		return RequestAnalyze{Request: r}, nil
	case KindRequestFullDocument:
		return RequestFullDocument{}, nil
	case KindAnalyzeProgress:
		var s string
		if err := decodePayload(env, &s); err != nil {
			return nil, err
		}
		return AnalyzeProgress{Status: s}, nil
	case KindAnalyzeResult:
		var v any
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		return AnalyzeResult{Result: v}, nil
	case KindAnalyzeError:
		var s string
		if err := decodePayload(env, &s); err != nil {
			return nil, err
		}
		return AnalyzeError{Message: s}, nil
	default:
		return Unknown{Type: string(env.Type), Payload: env.Payload}, nil
	}
}

func decodePayload(env envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}
