package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Message types written by JSONHandler.
const (
	MessageOutput = "output"
	MessageSystem = "system"
	MessageEvent  = "event"
)

// Message is one JSON line written by JSONHandler.
type Message struct {
	Type  string            `json:"type"`
	Text  string            `json:"text,omitempty"`
	Event *domain.CallEvent `json:"event,omitempty"`
}

// JSONHandler implements IOHandler over JSON Lines, for headless hosts.
type JSONHandler struct {
	Reader *bufio.Reader
	Writer io.Writer

	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) emit(msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.encoder.Encode(msg)
}

// Output emits {"type":"output","text":...}.
func (h *JSONHandler) Output(ctx context.Context, text string) error {
	return h.emit(Message{Type: MessageOutput, Text: text})
}

// SystemOutput emits {"type":"system","text":...}.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(Message{Type: MessageSystem, Text: msg})
}

// Event emits {"type":"event","text":...,"event":{...}}.
func (h *JSONHandler) Event(ctx context.Context, event domain.CallEvent, text string) error {
	return h.emit(Message{Type: MessageEvent, Text: text, Event: &event})
}

// Input reads one line. A JSON string is unquoted; anything else is taken
// verbatim. Lines that fail sanitization are reported as system messages
// and skipped.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		text, err := h.Reader.ReadString('\n')
		if err != nil && (err != io.EOF || text == "") {
			return "", err
		}

		text = strings.TrimSpace(text)

		var val string
		if err := json.Unmarshal([]byte(text), &val); err == nil {
			text = val
		}
		clean, serr := SanitizeInput(text)
		if serr == nil {
			return clean, nil
		}
		if werr := h.SystemOutput(ctx, fmt.Sprintf("Error: %v", serr)); werr != nil {
			return "", werr
		}
		if err == io.EOF {
			return "", io.EOF
		}
	}
}
