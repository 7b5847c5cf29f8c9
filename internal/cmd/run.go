package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/troupe-dev/troupe/internal/config"
	"github.com/troupe-dev/troupe/internal/console"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/internal/orchestrator"
	"github.com/troupe-dev/troupe/internal/registry"
)

var runCmd = &cobra.Command{
	Use:   "run <task...>",
	Short: "Run a task across the agent team",
	Long: `Run a task across the agent team defined in the roster file.

In collaborative mode (the default) the agents plan together, negotiate a
division of work, and each executes its share. In variant mode every agent
builds a complete independent solution in its own workspace directory and
one result is selected at the end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("mode", "", "session mode: collaborative or variant (overrides config)")
	runCmd.Flags().Bool("manual-select", false, "suspend variant runs for a manual selection")
	runCmd.Flags().String("roster", "", "agent roster file (overrides config)")
	runCmd.Flags().Bool("plain", false, "line output instead of the interactive feed")
	_ = viper.BindPFlag("session.mode", runCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("session.manual_selection", runCmd.Flags().Lookup("manual-select"))
	_ = viper.BindPFlag("paths.roster", runCmd.Flags().Lookup("roster"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	roster, err := config.LoadRoster(cfg.Paths.Roster)
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		dir := cfg.Logging.Dir
		if dir == "" {
			dir = config.ConfigDir()
		}
		logger, err = logging.NewLogger(dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		defer logger.Close()
	}

	prompt := strings.Join(args, " ")
	plain, _ := cmd.Flags().GetBool("plain")

	bus := event.NewBus()
	reg := registry.New(bus, logger, roster.Build()...)
	coord := orchestrator.New(bus, reg, logger,
		orchestrator.WithMode(orchestrator.Mode(cfg.Session.Mode)),
		orchestrator.WithManualSelection(cfg.Session.ManualSelection),
		orchestrator.WithExecutionTimeout(cfg.Session.ExecutionTimeout()),
		orchestrator.WithWorkspaceRoot(cfg.Paths.WorkspaceRoot),
	)

	ctx := context.Background()
	if plain {
		return runPlain(ctx, bus, coord, prompt)
	}
	return runWithFeed(ctx, bus, coord, prompt)
}

// runPlain drives the session with line-based output. Manual variant
// selections are answered on stdin.
func runPlain(ctx context.Context, bus *event.Bus, coord *orchestrator.Coordinator, prompt string) error {
	r := console.NewRenderer(os.Stdout, bus)
	r.Attach()
	defer r.Detach()

	requests := make(chan event.RequestEvent, 4)
	sub := bus.Subscribe(event.TypeRequest, func(e event.Event) {
		if req, ok := e.(event.RequestEvent); ok {
			requests <- req
		}
	})
	defer bus.Unsubscribe(sub)

	if _, err := coord.StartSession(ctx, prompt); err != nil {
		return err
	}
	defer coord.Shutdown(ctx)

	done := make(chan error, 1)
	go func() {
		done <- coord.Run(ctx)
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for {
		select {
		case err := <-done:
			return err
		case req := <-requests:
			answerSelection(coord, stdin, req)
		}
	}
}

// answerSelection prompts on stdin until a submission is accepted.
func answerSelection(coord *orchestrator.Coordinator, stdin *bufio.Scanner, req event.RequestEvent) {
	for {
		fmt.Print("selection> ")
		if !stdin.Scan() {
			return
		}
		raw := strings.TrimSpace(stdin.Text())
		if raw == "" {
			continue
		}
		res, err := coord.SubmitSelection(req.RequestID, raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(res.Message)
		return
	}
}

// runWithFeed drives the session under the interactive live feed.
func runWithFeed(ctx context.Context, bus *event.Bus, coord *orchestrator.Coordinator, prompt string) error {
	if _, err := coord.StartSession(ctx, prompt); err != nil {
		return err
	}
	defer coord.Shutdown(ctx)

	done := make(chan error, 1)
	go func() {
		done <- coord.Run(ctx)
	}()

	feedErr := console.RunFeed(bus, func(requestID, raw string) (string, error) {
		res, err := coord.SubmitSelection(requestID, raw)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	})
	if feedErr != nil {
		return feedErr
	}
	return <-done
}
