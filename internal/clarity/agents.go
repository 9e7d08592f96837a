package clarity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/agentflow/pkg/domain"
)

var (
	// ErrAgentExists is returned when creating an agent whose file already exists.
	ErrAgentExists = errors.New("agent already exists")
	// ErrInvalidAgentName is returned for names that are not identifiers.
	ErrInvalidAgentName = errors.New("invalid agent name")
	// ErrAmbiguousAgent is returned when a selection matches several agents.
	ErrAmbiguousAgent = errors.New("selection matches several agents")
)

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Agent is an agent definition file. Data keeps every field of the file so
// that saving does not drop anything the tool does not know about.
type Agent struct {
	Name string
	Path string
	Data map[string]any
}

// SystemMessage returns the "content" (or legacy "text") of system_message.
func (a *Agent) SystemMessage() string {
	switch sm := a.Data["system_message"].(type) {
	case map[string]any:
		if s, _ := sm["content"].(string); s != "" {
			return s
		}
		s, _ := sm["text"].(string)
		return s
	case string:
		return sm
	}
	return ""
}

// SetSystemMessage replaces the system message.
func (a *Agent) SetSystemMessage(msg string) {
	a.Data["system_message"] = map[string]any{"role": "system", "content": msg}
}

// DeleteSystemMessage removes the system message.
func (a *Agent) DeleteSystemMessage() {
	delete(a.Data, "system_message")
}

// JSON is the compact definition sent to the model.
func (a *Agent) JSON() (string, error) {
	b, err := json.Marshal(a.Data)
	if err != nil {
		return "", fmt.Errorf("failed to encode agent %q: %w", a.Name, err)
	}
	return string(b), nil
}

// AgentStore reads and writes agent definitions as <dir>/<name>.json.
type AgentStore struct {
	dir string
}

// NewAgentStore binds a store to dir. The directory is created on first write.
func NewAgentStore(dir string) *AgentStore {
	return &AgentStore{dir: dir}
}

// Dir returns the agents directory.
func (s *AgentStore) Dir() string {
	return s.dir
}

// List returns the agent names, sorted. A missing directory is empty.
func (s *AgentStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	slices.Sort(names)
	return names, nil
}

// Resolve turns a selection into an agent name. A selection is a 1-based
// index into List, an exact name, or a case-insensitive fragment matching
// exactly one name.
func (s *AgentStore) Resolve(selection string) (string, error) {
	selection = strings.TrimSuffix(strings.TrimSpace(selection), ".json")
	names, err := s.List()
	if err != nil {
		return "", err
	}

	if n, err := strconv.Atoi(selection); err == nil {
		if n < 1 || n > len(names) {
			return "", fmt.Errorf("%w: number %d (choose between 1 and %d)", domain.ErrAgentNotFound, n, len(names))
		}
		return names[n-1], nil
	}
	if slices.Contains(names, selection) {
		return selection, nil
	}

	var matches []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(selection)) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q", domain.ErrAgentNotFound, selection)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousAgent, strings.Join(matches, ", "))
	}
}

// Load reads the named agent.
func (s *AgentStore) Load(name string) (*Agent, error) {
	path := s.path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", domain.ErrAgentNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agent %q: %w", name, err)
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("invalid JSON in agent file %s: %w", path, err)
	}
	if body == nil {
		body = make(map[string]any)
	}
	return &Agent{Name: name, Path: path, Data: body}, nil
}

// Create writes a new agent definition. Existing files are never overwritten.
func (s *AgentStore) Create(name, description, systemMessage string) (*Agent, error) {
	if !agentNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q (use letters, digits and underscores, not starting with a digit)", ErrInvalidAgentName, name)
	}
	path := s.path(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, path)
	}

	agent := &Agent{
		Name: name,
		Path: path,
		Data: map[string]any{
			"history": []any{},
			"metadata": map[string]any{
				"frozenSegments": []any{},
				"startMode":      "interactive",
				"name":           name,
				"description":    description,
			},
		},
	}
	agent.SetSystemMessage(systemMessage)

	if err := s.write(agent, os.O_CREATE|os.O_EXCL|os.O_WRONLY); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrAgentExists, path)
		}
		return nil, err
	}
	return agent, nil
}

// Save rewrites an existing agent file.
func (s *AgentStore) Save(agent *Agent) error {
	return s.write(agent, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

func (s *AgentStore) write(agent *Agent, flag int) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create agents directory: %w", err)
	}
	data, err := json.MarshalIndent(agent.Data, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode agent %q: %w", agent.Name, err)
	}

	f, err := os.OpenFile(s.path(agent.Name), flag, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write agent %q: %w", agent.Name, err)
	}
	return f.Close()
}

func (s *AgentStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
