package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/agentflow/pkg/adapters/memory"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	machine  *fsm.Machine
	store    *memory.Store
	streams  *StreamManager
	handler  http.Handler
	registry *dispatch.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := fsm.NewBuilder("initial").
		Add("initial").On("load_agent", "agent_loaded").On("list_models", "initial", fsm.Hidden()).
		Add("agent_loaded").Stay("load_agent").On("analyze", "analysis_ready").
		Add("analysis_ready").Stay("analyze").
		Builder().
		ResetTo("reset", "initial").
		Build(fsm.WithName("clarity"))
	require.NoError(t, err)

	registry := dispatch.NewRegistry()
	registry.MustRegister(
		dispatch.Command{Name: "load_agent", Help: "Load an agent definition"},
		dispatch.Command{Name: "analyze", Help: "Analyze the agent", Confirm: "Sure? (y/n)"},
		dispatch.Command{Name: "help", Help: "List commands", Always: true},
	)

	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)
	metrics.CallSubmitted()

	f := &fixture{
		machine:  m,
		store:    memory.NewStore(),
		streams:  NewStreamManager(nil),
		registry: registry,
	}
	f.handler = NewHandler(m, dispatch.New(m, registry),
		WithSessions(f.store),
		WithGatherer(reg),
		WithStreams(f.streams),
		WithVersion("1.0.0"),
	)
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "clarity", body["machine"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "session documents are not shared cross-origin")
}

func TestState(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.machine.Transition("load_agent"))

	w := f.get(t, "/state")
	require.Equal(t, http.StatusOK, w.Code)

	var snap fsm.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "agent_loaded", snap.State)
	assert.Equal(t, []string{"load_agent", "analyze", "reset"}, snap.Available)
}

func TestCommands(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/commands")
	require.Equal(t, http.StatusOK, w.Code)

	var cmds []CommandInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmds))
	require.Len(t, cmds, 2)
	assert.Equal(t, CommandInfo{Name: "load_agent", Help: "Load an agent definition"}, cmds[0])
	assert.Equal(t, CommandInfo{Name: "help", Help: "List commands", Always: true}, cmds[1])
}

func TestMachine(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/machine")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `initial -- "load_agent" --> agent_loaded`)
	assert.Contains(t, w.Body.String(), "class initial current;")

	w = f.get(t, "/machine?format=json")
	require.Equal(t, http.StatusOK, w.Code)
	var def fsm.Definition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.Equal(t, "clarity", def.Name)
	assert.Equal(t, "initial", def.Initial)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := domain.NewSessionData()
	data.Screen("clarity").Data["state"] = "agent_loaded"
	require.NoError(t, f.store.Save(ctx, "demo", data))

	w := f.get(t, "/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["demo"]`, w.Body.String())

	w = f.get(t, "/sessions/demo")
	require.Equal(t, http.StatusOK, w.Code)
	var loaded domain.SessionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loaded))
	assert.Equal(t, "agent_loaded", loaded.Screens["clarity"].Data["state"])

	w = f.get(t, "/sessions/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_NoStore(t *testing.T) {
	m, err := fsm.NewBuilder("initial").Build()
	require.NoError(t, err)
	handler := NewHandler(m, dispatch.New(m, dispatch.NewRegistry()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are only served with a gatherer")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agentflow_calls_submitted_total 1")
}

func TestEvents_Stream(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "query topic", path: "/events?session=demo"},
		{name: "session path", path: "/sessions/demo/events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			ctx, cancel := context.WithCancel(context.Background())
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil).WithContext(ctx)

			done := make(chan struct{})
			go func() {
				defer close(done)
				f.handler.ServeHTTP(w, req)
			}()

			require.Eventually(t, func() bool {
				return f.streams.Subscribers("demo") == 1
			}, time.Second, 5*time.Millisecond)

			err := f.streams.Sink("demo").Post(context.Background(), domain.CallEvent{
				EventBase: domain.EventBase{Type: domain.EventCallComplete},
				InputID:   "a1",
				Result:    "analysis",
			})
			require.NoError(t, err)
			// Other topics are not delivered to this client.
			require.NoError(t, f.streams.Sink("other").Post(context.Background(), domain.CallEvent{InputID: "zz"}))

			require.Eventually(t, func() bool {
				return f.streams.Subscribers("demo") == 1 && pending(f.streams, "demo") == 0
			}, time.Second, 5*time.Millisecond)

			cancel()
			<-done

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
			body := w.Body.String()
			assert.Contains(t, body, "event: ping\ndata: connected\n\n")
			assert.Contains(t, body, `"input_id":"a1"`)
			assert.NotContains(t, body, `"zz"`)
			assert.Equal(t, 0, f.streams.Subscribers("demo"))
		})
	}
}

// pending reports how many messages wait in the subscriber buffers of topic.
func pending(sm *StreamManager, topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	n := 0
	for ch := range sm.subscribers[topic] {
		n += len(ch)
	}
	return n
}

func TestStreamManager_GlobalTopicSeesEverything(t *testing.T) {
	sm := NewStreamManager(nil)
	global, unsubscribe := sm.Subscribe("")
	defer unsubscribe()

	sm.Broadcast("demo", "one")
	sm.Broadcast("", "two")

	assert.Equal(t, "one", <-global)
	assert.Equal(t, "two", <-global)
}

func TestStreamManager_SlowClientDropsMessages(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, unsubscribe := sm.Subscribe("t")

	for i := 0; i < subscriberBuffer+5; i++ {
		sm.Broadcast("t", "x")
	}
	assert.Len(t, ch, subscriberBuffer)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, sm.Subscribers("t"))
}
