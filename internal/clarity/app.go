package clarity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/adapters/llm"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/aretw0/agentflow/pkg/session"
)

// Screen data keys written by the application.
const (
	KeyAgent    = "agent"
	KeyModel    = "model"
	KeyAnalysis = "analysis"
)

// Engine is the part of *agentflow.Engine the application drives.
type Engine interface {
	Register(cmds ...dispatch.Command) error
	Submit(ctx context.Context, task domain.Task) (string, error)
	Machine() *fsm.Machine
	Dispatcher() *dispatch.Dispatcher
}

// job remembers what a submitted call was for.
type job struct {
	kind   string
	aspect string
}

const (
	jobAnalysis = "analysis"
	jobFeedback = "feedback"
)

// App holds the state of one Agent Clarity session: the loaded agent, the
// selected model, the last analysis and the last feedback per aspect.
// Handlers run on the input loop; HandleEvent runs on the event loop.
type App struct {
	agents       *AgentStore
	exportDir    string
	catalog      llm.Catalog
	providers    *llm.Registry
	defaultModel string
	storage      *session.Storage
	screen       string
	logger       *slog.Logger

	engine Engine

	mu           sync.Mutex
	agent        *Agent
	model        *llm.ModelRef
	completer    ports.Completer
	analysis     string
	lastFeedback map[string]string
	pending      map[string]job
}

// Option configures the App.
type Option func(*App)

// WithAgentsDir sets where agent definitions live.
func WithAgentsDir(dir string) Option {
	return func(a *App) {
		a.agents = NewAgentStore(dir)
	}
}

// WithExportDir sets where export_analysis writes. Empty means the working directory.
func WithExportDir(dir string) Option {
	return func(a *App) {
		a.exportDir = dir
	}
}

// WithCatalog sets the models offered by list_models and select_model.
func WithCatalog(c llm.Catalog) Option {
	return func(a *App) {
		a.catalog = c
	}
}

// WithProviders sets the registry used to build completers.
func WithProviders(r *llm.Registry) Option {
	return func(a *App) {
		a.providers = r
	}
}

// WithDefaultModel is used by select_model when no argument is given.
func WithDefaultModel(ref string) Option {
	return func(a *App) {
		a.defaultModel = ref
	}
}

// WithStorage persists agent, model and analysis in the screen data of an open session.
func WithStorage(storage *session.Storage, screen string) Option {
	return func(a *App) {
		a.storage = storage
		a.screen = screen
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New creates the application. Defaults: agents in ./agents, the default
// catalog and providers without API keys.
func New(opts ...Option) *App {
	a := &App{
		agents:       NewAgentStore("agents"),
		catalog:      llm.DefaultCatalog(),
		providers:    llm.DefaultRegistry(llm.Keys{}),
		screen:       ScreenClarity,
		logger:       logging.NewNop(),
		lastFeedback: make(map[string]string),
		pending:      make(map[string]job),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register binds the application to eng and registers its commands.
func (a *App) Register(eng Engine) error {
	a.engine = eng
	return eng.Register(a.Commands()...)
}

// RegisterCommon registers only the commands every screen has: help,
// print_state_machine and exit. Screens without handlers run on
// transitions alone.
func RegisterCommon(eng Engine) error {
	a := New()
	a.engine = eng
	return eng.Register(a.commonCommands()...)
}

// Agent returns the loaded agent, or nil.
func (a *App) Agent() *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agent
}

// Model returns the selected model reference, or "".
func (a *App) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model == nil {
		return ""
	}
	return a.model.String()
}

// Analysis returns the last analysis text.
func (a *App) Analysis() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analysis
}

// Restore reloads agent, model, analysis and feedback from the session after a resume.
// Values that no longer resolve are skipped with a warning.
func (a *App) Restore(ctx context.Context) {
	if a.storage == nil {
		return
	}
	if name, _ := a.storage.GetData(KeyAgent, a.screen).(string); name != "" {
		agent, err := a.agents.Load(name)
		if err != nil {
			a.logger.Warn("could not restore agent", "agent", name, "err", err)
		} else {
			a.mu.Lock()
			a.agent = agent
			a.mu.Unlock()
		}
	}
	if ref, _ := a.storage.GetData(KeyModel, a.screen).(string); ref != "" {
		if err := a.useModel(ref); err != nil {
			a.logger.Warn("could not restore model", "model", ref, "err", err)
		}
	}
	if text, _ := a.storage.GetData(KeyAnalysis, a.screen).(string); text != "" {
		a.mu.Lock()
		a.analysis = text
		a.mu.Unlock()
	}
	for _, aspect := range feedbackAspects {
		if text, _ := a.storage.GetData(FeedbackKey(aspect), a.screen).(string); text != "" {
			a.mu.Lock()
			a.lastFeedback[aspect] = text
			a.mu.Unlock()
		}
	}
}

func (a *App) useModel(s string) error {
	ref, err := llm.ParseModelRef(s)
	if err != nil {
		return err
	}
	completer, err := a.providers.New(ref)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.model = &ref
	a.completer = completer
	a.mu.Unlock()
	return nil
}

// save writes key into the screen data. A session-less run keeps nothing.
func (a *App) save(ctx context.Context, key string, value any) {
	if a.storage == nil {
		return
	}
	if err := a.storage.UpdateData(ctx, key, value, a.screen); err != nil {
		a.logger.Error("failed to save session data", "key", key, "err", err)
	}
}
