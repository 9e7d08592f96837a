package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/internal/clarity"
	"github.com/aretw0/agentflow/internal/presentation/tui"
	httpadapter "github.com/aretw0/agentflow/pkg/adapters/http"
	"github.com/aretw0/agentflow/pkg/callmgr"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/aretw0/agentflow/pkg/runner"
	"github.com/aretw0/agentflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	eventBuffer     = 16
	shutdownTimeout = 10 * time.Second
)

type runOptions struct {
	session  string
	screen   string
	json     bool
	yes      bool
	httpAddr string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Starts the command loop for a screen (clarity by default). With --session the
screen state, command history and loaded agent are saved and restored on the
next run with the same name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{}
		opts.session, _ = cmd.Flags().GetString("session")
		opts.screen, _ = cmd.Flags().GetString("screen")
		opts.json, _ = cmd.Flags().GetBool("json")
		opts.yes, _ = cmd.Flags().GetBool("yes")
		opts.httpAddr, _ = cmd.Flags().GetString("http-addr")
		if opts.httpAddr == "" {
			opts.httpAddr = cfg.MetricsAddr
		}
		return runSession(cmd, opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session name to create or resume")
	runCmd.Flags().String("screen", clarity.ScreenClarity, "Screen to run: "+strings.Join(clarity.Screens(), ", "))
	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().BoolP("yes", "y", false, "Approve confirmation prompts automatically")
	runCmd.Flags().String("http-addr", "", "Serve state, metrics and call events over HTTP on this address")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}

func runSession(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, logCloser, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, sessionOpts, storeCloser, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	var storage *session.Storage
	if opts.session != "" {
		manager := session.NewManager(store, append(sessionOpts, session.WithLogger(logger))...)
		storage, err = manager.Open(ctx, opts.session)
		if err != nil {
			return fmt.Errorf("failed to open session %q: %w", opts.session, err)
		}
	}

	machine, err := clarity.ScreenMachine(opts.screen)
	if err != nil {
		return err
	}

	var handler runner.IOHandler
	if opts.json {
		handler = runner.NewJSONHandler(cmd.InOrStdin(), cmd.OutOrStdout())
	} else {
		handler = newTextHandler(cmd, machine.CurrentName)
	}

	interceptor := dispatch.ConfirmationInterceptor(handler)
	if opts.yes || !isTerminal(os.Stdin) {
		interceptor = dispatch.AutoApprove()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.MustNewMetrics(registry)

	events := make(callmgr.ChanSink, eventBuffer)
	var sink ports.EventSink = events
	var streams *httpadapter.StreamManager
	if opts.httpAddr != "" {
		streams = httpadapter.NewStreamManager(logger)
		sink = fanOut(events, streams.Sink(opts.session))
	}

	engine, err := agentflow.New(machine,
		agentflow.WithLogger(logger),
		agentflow.WithSink(sink),
		agentflow.WithMaxWorkers(cfg.MaxWorkers),
		agentflow.WithCallTimeout(cfg.CallTimeout),
		agentflow.WithInterceptor(interceptor),
		agentflow.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	var onEvent runner.EventHandler
	var app *clarity.App
	if machine.Name() == clarity.ScreenClarity {
		app, err = newApp(storage, opts.screen, logger)
		if err != nil {
			return err
		}
		if err := app.Register(engine); err != nil {
			return err
		}
		onEvent = app.HandleEvent
	} else if err := clarity.RegisterCommon(engine); err != nil {
		return err
	}

	recorder := runner.NewSessionRecorder(storage, machine.Name(), logger)
	resumed, ok, err := recorder.Resume(machine)
	if err != nil {
		logger.Warn("saved state not restored", "session", opts.session, "err", err)
	}
	if app != nil {
		app.Restore(ctx)
	}

	if opts.httpAddr != "" {
		srv := &http.Server{
			Addr: opts.httpAddr,
			Handler: httpadapter.NewHandler(machine, engine.Dispatcher(),
				httpadapter.WithSessions(store),
				httpadapter.WithGatherer(registry),
				httpadapter.WithStreams(streams),
				httpadapter.WithVersion(strings.TrimSpace(agentflow.Version)),
				httpadapter.WithLogger(logger),
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !opts.json {
		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(agentflow.Version))
	}

	signals := runner.NewSignalManager()
	defer signals.Stop()

	r := runner.New(
		runner.WithDispatcher(engine.Dispatcher()),
		runner.WithHandler(handler),
		runner.WithEvents(events, onEvent),
		runner.WithRecorder(recorder.Record),
		runner.WithSignals(signals),
		runner.WithGreeting(greeting(opts, resumed, ok)),
		runner.WithLogger(logger),
	)
	runErr := r.Run(signals.Context())

	// Results that arrive after the loop still reach the session.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drainEvents(context.WithoutCancel(ctx), events, engine.Calls().Done(), onEvent, logger)
	}()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("calls still running at exit", "pending", engine.Calls().Pending(), "running", engine.Calls().Running())
	}
	select {
	case <-drained:
	case <-shutdownCtx.Done():
	}
	return runErr
}

func newTextHandler(cmd *cobra.Command, state func() string) *runner.TextHandler {
	opts := []runner.TextHandlerOption{
		runner.WithPrompt(func() string { return state() + "> " }),
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok && isTerminal(f) {
		width := 80
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 4
		}
		opts = append(opts, runner.WithTextHandlerRenderer(tui.NewRenderer(width)))
	}
	return runner.NewTextHandler(cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func greeting(opts runOptions, resumed string, ok bool) string {
	var sb strings.Builder
	if opts.screen == clarity.ScreenClarity || opts.screen == "" {
		sb.WriteString("Welcome to Agent Clarity! Type 'help' to see available commands.")
	} else {
		fmt.Fprintf(&sb, "Screen '%s'. Type 'help' to see available commands.", opts.screen)
	}
	if ok {
		fmt.Fprintf(&sb, "\nResumed session '%s' in state '%s'.", opts.session, resumed)
	}
	return sb.String()
}

// drainEvents hands every event to handle until done is closed, then
// empties what is left in the buffer. A nil handle only discards.
func drainEvents(ctx context.Context, events <-chan domain.CallEvent, done <-chan struct{}, handle runner.EventHandler, logger *slog.Logger) {
	deliver := func(ev domain.CallEvent) {
		if handle == nil {
			return
		}
		if _, err := handle(ctx, ev); err != nil {
			logger.Warn("call finished after exit", "input_id", ev.InputID, "err", err)
			return
		}
		logger.Info("call finished after exit", "input_id", ev.InputID)
	}
	for {
		select {
		case ev := <-events:
			deliver(ev)
		case <-done:
			for {
				select {
				case ev := <-events:
					deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// fanOut posts each event to every sink. Only the primary sink's error is returned.
func fanOut(primary ports.EventSink, others ...ports.EventSink) ports.EventSink {
	return callmgr.SinkFunc(func(ctx context.Context, event domain.CallEvent) error {
		for _, s := range others {
			_ = s.Post(ctx, event)
		}
		return primary.Post(ctx, event)
	})
}
