package clarity

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/aretw0/agentflow/pkg/fsm"
)

// Screen names.
const (
	ScreenClarity = "clarity"
)

// ErrUnknownScreen is returned for a screen with no machine.
var ErrUnknownScreen = errors.New("unknown screen")

//go:embed screens/*.yaml
var screenFS embed.FS

// NewMachine builds the clarity screen machine.
func NewMachine() (*fsm.Machine, error) {
	return fsm.NewBuilder("initial").
		Add("initial").
		On("load_agent", "agent_loaded").
		On("create_agent", "agent_created").
		On("list_models", "initial", fsm.Hidden()).
		Add("agent_created").
		On("load_agent", "agent_loaded").
		Add("agent_loaded").
		Stay("load_agent").
		On("select_model", "model_selected").
		On("system_message", "agent_loaded", fsm.Hidden()).
		On("list_models", "agent_loaded", fsm.Hidden()).
		Add("model_selected").
		On("load_agent", "agent_loaded").
		Stay("select_model").
		On("analyze", "analysis_ready").
		On("system_message", "model_selected", fsm.Hidden()).
		Add("analysis_ready").
		On("load_agent", "agent_loaded").
		On("select_model", "model_selected").
		Stay("analyze", "export_analysis", "feedback",
			"feedback_input", "feedback_output", "feedback_rules", "feedback_constraints").
		On("system_message", "analysis_ready", fsm.Hidden()).
		Builder().
		ResetTo("reset", "initial").
		Build(fsm.WithName(ScreenClarity))
}

// Screens lists every screen name, clarity first.
func Screens() []string {
	names := []string{ScreenClarity}
	entries, err := screenFS.ReadDir("screens")
	if err != nil {
		return names
	}
	var extra []string
	for _, e := range entries {
		extra = append(extra, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// ScreenMachine builds the machine for a screen.
func ScreenMachine(screen string) (*fsm.Machine, error) {
	if screen == "" || screen == ScreenClarity {
		return NewMachine()
	}
	if !slices.Contains(Screens(), screen) {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScreen, screen, strings.Join(Screens(), ", "))
	}
	def, err := fsm.LoadDefinitionFS(screenFS, "screens/"+screen+".yaml")
	if err != nil {
		return nil, err
	}
	return def.Build()
}
