package main

import (
	"fmt"
	"os"

	"github.com/aretw0/agentflow/internal/config"
	"github.com/spf13/cobra"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "Agent Clarity: review and refine LLM agent definitions",
	Long: `agentflow drives a state machine of commands for loading, analyzing and
refining LLM agent definitions. Model calls run in the background and their
results arrive while you keep typing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, file)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default .agentflow/config.yaml or ~/.agentflow/config.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("agents-dir", "", "Directory containing agent definitions")
	flags.String("store", "", "Session store: file, memory or redis")

	// Bound flags only win over config and environment when set explicitly.
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("agents_dir", flags.Lookup("agents-dir"))
	_ = v.BindPFlag("store.kind", flags.Lookup("store"))
}
