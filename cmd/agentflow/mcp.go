package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/internal/clarity"
	"github.com/aretw0/agentflow/pkg/adapters/mcp"
	"github.com/aretw0/agentflow/pkg/callmgr"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/runner"
	"github.com/aretw0/agentflow/pkg/session"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Serves the clarity screen as an MCP server over stdio, so another agent can
dispatch commands and inspect the state machine. Confirmation prompts are
approved automatically. An analysis result becomes the current analysis and
can be written out with export_analysis; feedback results are kept per aspect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		sessionName, _ := cmd.Flags().GetString("session")

		// Stdout carries JSON-RPC; logs go to stderr.
		logger, closer, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closer.Close()

		var storage *session.Storage
		if sessionName != "" {
			store, sessionOpts, storeCloser, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer storeCloser.Close()
			storage, err = session.NewManager(store, sessionOpts...).Open(ctx, sessionName)
			if err != nil {
				return fmt.Errorf("failed to open session %q: %w", sessionName, err)
			}
		}

		machine, err := clarity.NewMachine()
		if err != nil {
			return err
		}
		events := make(callmgr.ChanSink, eventBuffer)
		engine, err := agentflow.New(machine,
			agentflow.WithLogger(logger),
			agentflow.WithSink(events),
			agentflow.WithMaxWorkers(cfg.MaxWorkers),
			agentflow.WithCallTimeout(cfg.CallTimeout),
			agentflow.WithInterceptor(dispatch.AutoApprove()),
		)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = engine.Shutdown(shutdownCtx)
		}()

		app, err := newApp(storage, clarity.ScreenClarity, logger)
		if err != nil {
			return err
		}
		if err := app.Register(engine); err != nil {
			return err
		}
		recorder := runner.NewSessionRecorder(storage, clarity.ScreenClarity, logger)
		if _, _, err := recorder.Resume(machine); err != nil {
			logger.Warn("saved state not restored", "session", sessionName, "err", err)
		}
		app.Restore(ctx)

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-events:
					text, err := app.HandleEvent(ctx, ev)
					if err != nil {
						logger.Warn("call failed", "input_id", ev.InputID, "err", err)
						continue
					}
					logger.Info("call result", "input_id", ev.InputID, "chars", len(text))
				}
			}
		}()

		logger.Info("starting MCP server (stdio)")
		srv := mcp.NewServer(recordingEngine{Engine: engine, recorder: recorder}, strings.TrimSpace(agentflow.Version), logger)
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("session", "s", "", "Session name to create or resume")
}

// recordingEngine saves every dispatched line to the session, like the
// interactive runner does.
type recordingEngine struct {
	*agentflow.Engine
	recorder *runner.SessionRecorder
}

func (e recordingEngine) Dispatch(ctx context.Context, line string) dispatch.Outcome {
	out := e.Engine.Dispatch(ctx, line)
	e.recorder.Record(ctx, line, out)
	return out
}
