package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	Prompt   func() string

	mu        sync.Mutex
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPrompt sets the function producing the prompt shown before each read.
func WithPrompt(prompt func() string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: func() string { return "> " },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour ctx.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Back off so a persistent failure does not spin.
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func (h *TextHandler) write(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprint(h.Writer, s)
}

func (h *TextHandler) render(msg string) string {
	if h.Renderer == nil {
		return msg
	}
	rendered, err := h.Renderer(msg)
	if err != nil {
		return msg
	}
	return rendered
}

// Output writes content, passing it through the Renderer when set.
func (h *TextHandler) Output(ctx context.Context, text string) error {
	h.write(strings.TrimSpace(h.render(text)) + "\n")
	return nil
}

// SystemOutput writes a meta-message unrendered.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	h.write(msg + "\n")
	return nil
}

// Event writes an async result on its own block so it stands out from the prompt.
func (h *TextHandler) Event(ctx context.Context, event domain.CallEvent, text string) error {
	if event.Failed() {
		h.write(fmt.Sprintf("\n[%s] Error: %s\n", event.InputID, text))
		return nil
	}
	h.write("\n" + strings.TrimSpace(h.render(text)) + "\n")
	return nil
}

// Input prints the prompt and waits for a sanitized line, ctx, or EOF.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		h.write(h.Prompt())

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}

			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				h.write(fmt.Sprintf("Error: %v. Please try again.\n", err))
				continue
			}
			return clean, nil
		}
	}
}
