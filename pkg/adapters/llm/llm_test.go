package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/agentflow/pkg/adapters/llm"
	"github.com/aretw0/agentflow/pkg/ports"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.Completer = (*llm.Anthropic)(nil)
	_ ports.Completer = (*llm.OpenAI)(nil)
	_ ports.Completer = (*llm.Echo)(nil)
)

// fakeAPI records the last request body and answers with reply.
func fakeAPI(t *testing.T, status int, reply string) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return body
	}
}

func TestAnthropic_Complete(t *testing.T) {
	srv, body := fakeAPI(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [{"type": "text", "text": "Looks "}, {"type": "text", "text": "solid."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`)

	c := llm.NewAnthropic("key", "claude-test",
		anthropicopt.WithBaseURL(srv.URL+"/"),
		anthropicopt.WithMaxRetries(0),
	)
	out, err := c.Complete(context.Background(), "You review agents.", "Analyze this")
	require.NoError(t, err)
	assert.Equal(t, "Looks solid.", out)
	assert.Equal(t, "claude-test", c.Model())

	assert.Equal(t, "claude-test", body()["model"])
	assert.NotEmpty(t, body()["system"])
	assert.Len(t, body()["messages"], 1)
}

func TestAnthropic_Error(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)

	c := llm.NewAnthropic("key", "nope",
		anthropicopt.WithBaseURL(srv.URL+"/"),
		anthropicopt.WithMaxRetries(0),
	)
	_, err := c.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic request failed")
}

func TestOpenAI_Complete(t *testing.T) {
	srv, body := fakeAPI(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Fine."}, "finish_reason": "stop"}]
	}`)

	c := llm.NewOpenAI("key", "gpt-test",
		openaiopt.WithBaseURL(srv.URL+"/"),
		openaiopt.WithMaxRetries(0),
	)
	out, err := c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Fine.", out)

	messages, ok := body()["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2, "system and user messages")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK,
		`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)

	c := llm.NewOpenAI("key", "m", openaiopt.WithBaseURL(srv.URL+"/"), openaiopt.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), "", "prompt")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestEcho(t *testing.T) {
	out, err := llm.NewEcho("offline").Complete(context.Background(), "ab", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "[offline] received 4 characters of prompt (system: 2 characters)", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = llm.NewEcho("offline").Complete(ctx, "", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		in      string
		want    llm.ModelRef
		wantErr bool
	}{
		{in: "anthropic:claude-sonnet-4-5", want: llm.ModelRef{Provider: "anthropic", Model: "claude-sonnet-4-5"}},
		{in: " OpenAI : gpt-4o ", want: llm.ModelRef{Provider: "openai", Model: "gpt-4o"}},
		{in: "ollama:llama3:8b", want: llm.ModelRef{Provider: "ollama", Model: "llama3:8b"}},
		{in: "gpt-4o", wantErr: true},
		{in: ":model", wantErr: true},
		{in: "provider:", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := llm.ParseModelRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrInvalidModelRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := llm.DefaultRegistry(llm.Keys{Anthropic: "a-key"})
	assert.Equal(t, []string{"anthropic", "echo", "openai"}, r.Providers())

	c, err := r.New(llm.ModelRef{Provider: "anthropic", Model: "claude-haiku-4-5"})
	require.NoError(t, err)
	assert.IsType(t, &llm.Anthropic{}, c)

	_, err = r.New(llm.ModelRef{Provider: "openai", Model: "gpt-4o"})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = r.New(llm.ModelRef{Provider: "mistral", Model: "large"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	assert.True(t, r.Has("ECHO"))
}

func TestCatalog(t *testing.T) {
	c, err := llm.ParseCatalog([]string{"echo:offline", "openai:gpt-4o"})
	require.NoError(t, err)
	assert.True(t, c.Contains(llm.ModelRef{Provider: "openai", Model: "gpt-4o"}))
	assert.False(t, c.Contains(llm.ModelRef{Provider: "openai", Model: "gpt-3"}))
	assert.Equal(t, []string{"echo:offline", "openai:gpt-4o"}, c.Strings())

	_, err = llm.ParseCatalog([]string{"broken"})
	assert.ErrorIs(t, err, llm.ErrInvalidModelRef)

	assert.NotEmpty(t, llm.DefaultCatalog())
}
