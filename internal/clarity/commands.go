package clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/adapters/llm"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
)

// ConfirmAnalyze is asked before an analysis is submitted.
const ConfirmAnalyze = "Are you sure you want to proceed with the analysis? (y/n)"

var (
	// ErrNoAgent is returned by commands that need a loaded agent.
	ErrNoAgent = errors.New("no agent definition loaded, use 'load_agent' first")
	// ErrNoModel is returned by commands that need a selected model.
	ErrNoModel = errors.New("no model selected, use 'select_model' first")
	// ErrNoAnalysis is returned by export_analysis before any analysis.
	ErrNoAnalysis = errors.New("no analysis has been performed yet, use 'analyze' first")
	// ErrUsage is returned when required arguments are missing.
	ErrUsage = errors.New("usage")
)

// Commands returns the full command table of the clarity screen.
func (a *App) Commands() []dispatch.Command {
	cmds := []dispatch.Command{
		{Name: "load_agent", Help: "Load an agent definition (name or number; no argument lists them)", Handler: a.loadAgent},
		{Name: "create_agent", Help: "Create a new agent definition: create_agent <name> [description]", Handler: a.createAgent},
		{Name: "list_models", Help: "List all available LLM models", Handler: a.listModels},
		{Name: "select_model", Help: "Select a model to use (number or provider:model)", Handler: a.selectModel},
		{Name: "analyze", Help: "Perform an initial analysis of the loaded agent definition", Handler: a.analyze, Confirm: ConfirmAnalyze},
		{Name: "export_analysis", Help: "Export the last analysis to a markdown file", Handler: a.exportAnalysis},
		{Name: "feedback", Help: "Get feedback on an aspect: input, output, rules or constraints", Handler: a.feedback},
		{Name: "system_message", Help: "Manage the system message: set <text> | view | delete", Handler: a.systemMessage},
		{Name: "reset", Help: "Reset the process and return to the initial state", Handler: a.reset},
	}
	for _, name := range []string{"feedback_input", "feedback_output", "feedback_rules", "feedback_constraints"} {
		aspect := feedbackAspects[name]
		cmds = append(cmds, dispatch.Command{
			Name: name,
			Help: "Get feedback on the " + aspect + " of the agent definition",
			Handler: func(ctx context.Context, args string) (string, error) {
				return a.submitFeedback(ctx, aspect)
			},
		})
	}
	return append(cmds, a.commonCommands()...)
}

func (a *App) commonCommands() []dispatch.Command {
	return []dispatch.Command{
		{Name: "help", Help: "List the commands available now", Handler: a.help, Always: true},
		{Name: "print_state_machine", Help: "Print the state machine configuration", Handler: a.printStateMachine, Always: true},
		{Name: "exit", Help: "Exit the tool", Handler: exit, Always: true},
	}
}

func (a *App) loadAgent(ctx context.Context, args string) (string, error) {
	if strings.TrimSpace(args) == "" {
		names, err := a.agents.List()
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return fmt.Sprintf("No agent files found in %s.", a.agents.Dir()), dispatch.ErrCancelTransition
		}
		var sb strings.Builder
		sb.WriteString("Available agents:\n")
		for i, name := range names {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
		}
		sb.WriteString("Use 'load_agent <name or number>' to load one.")
		return sb.String(), dispatch.ErrCancelTransition
	}

	name, err := a.agents.Resolve(args)
	if err != nil {
		return "", err
	}
	agent, err := a.agents.Load(name)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.agent = agent
	a.mu.Unlock()
	a.save(ctx, KeyAgent, agent.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Agent definition loaded from %s\n", agent.Path)
	if msg := agent.SystemMessage(); msg != "" {
		fmt.Fprintf(&sb, "System message: %s\n", msg)
	} else {
		sb.WriteString("No system message found in the agent definition.\n")
	}
	sb.WriteString("Use 'system_message set|view|delete' to manage the system message.")
	return sb.String(), nil
}

func (a *App) createAgent(ctx context.Context, args string) (string, error) {
	name, description := dispatch.Split(args)
	if name == "" {
		return "", fmt.Errorf("%w: create_agent <name> [description]", ErrUsage)
	}
	agent, err := a.agents.Create(name, description, "")
	if err != nil {
		return "", err
	}
	a.save(ctx, "agent_state", agent.Data)
	return fmt.Sprintf("New agent '%s' created and saved to %s.", agent.Name, agent.Path), nil
}

func (a *App) listModels(ctx context.Context, args string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Available models:\n")
	current := a.Model()
	for i, ref := range a.catalog {
		marker := ""
		if ref.String() == current {
			marker = " (selected)"
		}
		fmt.Fprintf(&sb, "  %d. %s%s\n", i+1, ref, marker)
	}
	sb.WriteString("\nTo select a model, use 'select_model <number>' or 'select_model <name>'")
	return sb.String(), nil
}

func (a *App) selectModel(ctx context.Context, args string) (string, error) {
	arg := strings.TrimSpace(args)
	if arg == "" {
		arg = a.defaultModel
	}
	if arg == "" {
		return "", fmt.Errorf("%w: no model selected, use 'list_models' to see available options", ErrUsage)
	}

	ref, err := a.resolveModel(arg)
	if err != nil {
		return "", err
	}
	if err := a.useModel(ref.String()); err != nil {
		return "", err
	}
	a.save(ctx, KeyModel, ref.String())
	return "Selected model: " + ref.String(), nil
}

// resolveModel accepts a 1-based catalog index, a full "provider:model"
// reference (listed or not) or a fragment matching exactly one listed model.
func (a *App) resolveModel(arg string) (llm.ModelRef, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(a.catalog) {
			return llm.ModelRef{}, fmt.Errorf("invalid model number %d, choose between 1 and %d", n, len(a.catalog))
		}
		return a.catalog[n-1], nil
	}

	var matches []llm.ModelRef
	for _, ref := range a.catalog {
		if strings.EqualFold(ref.String(), arg) {
			return ref, nil
		}
		if strings.Contains(strings.ToLower(ref.String()), strings.ToLower(arg)) {
			matches = append(matches, ref)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if ref, err := llm.ParseModelRef(arg); err == nil && a.providers.Has(ref.Provider) {
			return ref, nil
		}
		return llm.ModelRef{}, fmt.Errorf("model '%s' not found, use 'list_models' to see available options", arg)
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.String()
		}
		return llm.ModelRef{}, fmt.Errorf("multiple models match '%s': %s", arg, strings.Join(names, ", "))
	}
}

func (a *App) analyze(ctx context.Context, args string) (string, error) {
	id, err := a.submit(ctx, job{kind: jobAnalysis}, AnalyzePrompt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Starting analysis... (request %s)", id), nil
}

func (a *App) feedback(ctx context.Context, args string) (string, error) {
	aspect := normalizeAspect(args)
	if aspect == "" {
		return "", fmt.Errorf("%w: please specify an aspect (input, output, rules, or constraints)", ErrUsage)
	}
	return a.submitFeedback(ctx, aspect)
}

func (a *App) submitFeedback(ctx context.Context, aspect string) (string, error) {
	id, err := a.submit(ctx, job{kind: jobFeedback, aspect: aspect}, FeedbackPrompt(aspect))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Requesting feedback on %s... (request %s)", aspect, id), nil
}

// submit queues a call carrying the agent definition between pre and the
// (empty) post prompt.
func (a *App) submit(ctx context.Context, j job, pre string) (string, error) {
	a.mu.Lock()
	agent, completer := a.agent, a.completer
	a.mu.Unlock()

	if agent == nil {
		return "", ErrNoAgent
	}
	if completer == nil {
		return "", ErrNoModel
	}
	definition, err := agent.JSON()
	if err != nil {
		return "", err
	}

	// Hold the lock across Submit so a fast event cannot beat the pending entry.
	a.mu.Lock()
	defer a.mu.Unlock()
	id, err := a.engine.Submit(ctx, domain.Task{
		PrePrompt: pre,
		Args:      []any{agent.Name},
		Fn: func(ctx context.Context, req domain.CallRequest) (string, error) {
			return completer.Complete(ctx, SystemPrompt, BuildPrompt(req.PrePrompt, definition, req.PostPrompt))
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit request: %w", err)
	}
	a.pending[id] = j
	return id, nil
}

func (a *App) exportAnalysis(ctx context.Context, args string) (string, error) {
	analysis := a.Analysis()
	if analysis == "" {
		return "", ErrNoAnalysis
	}
	filename := strings.TrimSpace(args)
	if filename == "" {
		return "", fmt.Errorf("%w: export_analysis <filename>", ErrUsage)
	}
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}

	path := filename
	if a.exportDir != "" {
		path = filepath.Join(a.exportDir, filename)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(analysis), 0644); err != nil {
		return "", fmt.Errorf("failed to export analysis: %w", err)
	}
	return fmt.Sprintf("Analysis exported to '%s'.", path), nil
}

func (a *App) systemMessage(ctx context.Context, args string) (string, error) {
	agent := a.Agent()
	if agent == nil {
		return "", ErrNoAgent
	}

	action, rest := dispatch.Split(args)
	if action == "" {
		return "", fmt.Errorf("%w: system_message set <text> | view | delete", ErrUsage)
	}
	var matches []string
	for _, candidate := range []string{"set", "view", "delete"} {
		if strings.HasPrefix(candidate, strings.ToLower(action)) {
			matches = append(matches, candidate)
		}
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("invalid action %q, use 'set', 'view', or 'delete'", action)
	}

	switch matches[0] {
	case "view":
		if msg := agent.SystemMessage(); msg != "" {
			return "Current system message: " + msg, nil
		}
		return "No system message set for the current agent.", nil
	case "set":
		if rest == "" {
			return "", fmt.Errorf("%w: system_message set <text>", ErrUsage)
		}
		a.mu.Lock()
		agent.SetSystemMessage(rest)
		a.mu.Unlock()
	case "delete":
		a.mu.Lock()
		agent.DeleteSystemMessage()
		a.mu.Unlock()
	}

	if err := a.agents.Save(agent); err != nil {
		return "", err
	}
	verb := "set/updated"
	if matches[0] == "delete" {
		verb = "deleted"
	}
	return fmt.Sprintf("System message %s for the current agent.\nAgent definition updated in %s", verb, agent.Path), nil
}

func (a *App) reset(ctx context.Context, args string) (string, error) {
	a.mu.Lock()
	a.agent = nil
	a.model = nil
	a.completer = nil
	a.analysis = ""
	keys := []string{KeyAgent, KeyModel, KeyAnalysis}
	for aspect := range a.lastFeedback {
		keys = append(keys, FeedbackKey(aspect))
	}
	clear(a.lastFeedback)
	a.mu.Unlock()

	for _, key := range keys {
		a.save(ctx, key, "")
	}
	return "Resetting to initial state", nil
}

func (a *App) help(ctx context.Context, args string) (string, error) {
	return "Available commands:\n" + a.engine.Dispatcher().Help(), nil
}

func (a *App) printStateMachine(ctx context.Context, args string) (string, error) {
	return graph.Table(a.engine.Machine()), nil
}

func exit(ctx context.Context, args string) (string, error) {
	return "Goodbye!", dispatch.ErrExit
}
