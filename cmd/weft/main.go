package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/weftworks/weft/pkg/capability"
	"github.com/weftworks/weft/pkg/cmd"
	"github.com/weftworks/weft/pkg/eventbus"
	"github.com/weftworks/weft/pkg/llm"
	"github.com/weftworks/weft/pkg/log"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/otelhelper"
	"github.com/weftworks/weft/pkg/workflow"
)

func main() {
	root := &cli.Command{
		Name:                  "weft",
		EnableShellCompletion: true,
		Usage:                 "Multi-step workflow orchestration with interleaved reasoning",
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			actionsCommand(),
		},
	}

	err := root.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow definition against an input",
		ArgsUsage: "<workflow-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Workflow input as a JSON object",
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Checkpoint store URL (file path, postgres:// or redis://)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (memory, kafka, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "execution-id",
				Usage:   "Custom execution ID (auto-generated if not provided)",
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("weft")

	wf, err := loadWorkflow(command.Args().First())
	if err != nil {
		return err
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(command.String("input")), &input); err != nil {
		return fmt.Errorf("input is not a JSON object: %w", err)
	}

	registry, err := cmd.NewRegistry(logger)
	if err != nil {
		return err
	}

	var client llm.Client
	if os.Getenv("OPENAI_API_KEY") != "" {
		client = llm.NewOpenAIClient(llm.OpenAIConfig{})
	}

	store, err := cmd.NewExecutionStore(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	var bus eventbus.EventBus

	if provider := command.String("event-bus"); provider != "none" {
		bus, err = cmd.NewEventBus(provider, "weft", logger)
		if err != nil {
			return err
		}

		defer func() {
			if err := bus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()
	}

	dispatcher := capability.NewDispatcher(registry, client, logger)
	executor := workflow.NewStepExecutor(dispatcher, workflow.NewReasoningEngine(client, logger), logger)
	orchestrator := workflow.NewOrchestrator(executor, store, bus, logger)

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(ctx, "weft")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		orchestrator = orchestrator.WithTracer(tracer)
	}

	executionID := command.String("execution-id")
	if executionID == "" {
		executionID = uuid.New().String()
	}

	result, err := orchestrator.Run(ctx, wf, input, workflow.RunOptions{ExecutionID: executionID})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(map[string]any{
		"execution_id": result.Execution.ID,
		"status":       result.Execution.Status,
		"cost":         result.Execution.Cost,
		"tokens":       result.Execution.Tokens,
		"error":        result.Execution.Error,
		"output":       result.Execution.Output,
	}, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	if result.Execution.Status != models.ExecutionStatusCompleted {
		return fmt.Errorf("execution finished with status %s", result.Execution.Status)
	}

	return nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow definition file",
		ArgsUsage: "<workflow-file>",
		Action: func(_ context.Context, command *cli.Command) error {
			wf, err := loadWorkflow(command.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("workflow %q is valid: %d steps\n", wf.Name, len(wf.Steps))

			return nil
		},
	}
}

func actionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "actions",
		Usage: "List the registered native actions",
		Action: func(_ context.Context, _ *cli.Command) error {
			registry, err := cmd.NewRegistry(log.WithModule("weft"))
			if err != nil {
				return err
			}

			for _, identifier := range registry.ActionIdentifiers() {
				fmt.Println(identifier)
			}

			return nil
		},
	}
}

func loadWorkflow(path string) (*models.Workflow, error) {
	if path == "" {
		return nil, errors.New("workflow file argument is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}

	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	return &wf, nil
}
