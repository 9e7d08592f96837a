package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/agentflow/internal/clarity"
	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var machineCmd = &cobra.Command{
	Use:   "machine [screen]",
	Short: "Print the state machine of a screen",
	Long: `Prints the states and transitions of a screen (clarity by default) as a
table, a Mermaid diagram (graph TD), or a YAML/JSON definition that can be
loaded back.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		screen := clarity.ScreenClarity
		if len(args) > 0 {
			screen = args[0]
		}
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		m, err := clarity.ScreenMachine(screen)
		if err != nil {
			return err
		}
		text, err := renderMachine(m, format)
		if err != nil {
			return err
		}

		if out == "" {
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		}
		if err := os.WriteFile(out, []byte(text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "State machine written to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(machineCmd)
	machineCmd.Flags().StringP("format", "f", "table", "Output format: table, mermaid, yaml or json")
	machineCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
}

func renderMachine(m *fsm.Machine, format string) (string, error) {
	switch format {
	case "table":
		return graph.Table(m), nil
	case "mermaid":
		return graph.Mermaid(m, nil), nil
	case "yaml":
		data, err := yaml.Marshal(fsm.DefinitionOf(m))
		return string(data), err
	case "json":
		data, err := json.MarshalIndent(fsm.DefinitionOf(m), "", "  ")
		return string(data) + "\n", err
	default:
		return "", fmt.Errorf("unknown format %q (want table, mermaid, yaml or json)", format)
	}
}
