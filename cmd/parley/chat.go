package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/bus"
	"github.com/odvcencio/parley/pkg/command"
	"github.com/odvcencio/parley/pkg/config"
	"github.com/odvcencio/parley/pkg/conversation"
	"github.com/odvcencio/parley/pkg/observability"
	"github.com/odvcencio/parley/pkg/run"
	"github.com/odvcencio/parley/pkg/statestore"
	"github.com/odvcencio/parley/pkg/widget"
)

func runChatCommand(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	urlFlag := fs.String("url", "", "backend base URL")
	agentFlag := fs.String("agent", "", "agent id")
	tokenFlag := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if *urlFlag != "" {
		cfg.Backend.URL = *urlFlag
	}
	if *agentFlag != "" {
		cfg.Backend.AgentID = *agentFlag
	}
	if *tokenFlag != "" {
		cfg.Backend.Token = *tokenFlag
	}
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend URL is required (flag -url, config backend.url, or PARLEY_BACKEND_URL)")
	}
	if cfg.Backend.AgentID == "" {
		return fmt.Errorf("agent id is required (flag -agent, config backend.agent_id, or PARLEY_AGENT_ID)")
	}

	logger := observability.NewLogger("chat", logLevel(cfg.Logging.Level))

	backend, err := agentapi.NewClient(agentapi.ClientOptions{
		BaseURL:   cfg.Backend.URL,
		AuthToken: cfg.Backend.Token,
		Timeout:   cfg.Backend.Timeout,
	})
	if err != nil {
		return err
	}

	registry := widget.NewRegistry()
	if err := registerWidgets(registry, cfg.Widgets); err != nil {
		return err
	}

	eventBus, err := buildBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer func() { _ = eventBus.Close() }()

	store := statestore.NewMemoryStore()
	orch, err := run.NewOrchestrator(run.Options{
		Backend:      backend,
		AgentID:      cfg.Backend.AgentID,
		Registry:     registry,
		Bus:          eventBus,
		Store:        store,
		PollInterval: cfg.Polling.Interval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := command.NewListener(store, orch, logger)
	go listener.Watch(ctx, cfg.Polling.CommandInterval)

	return chatLoop(ctx, orch)
}

func chatLoop(ctx context.Context, orch *run.Orchestrator) error {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64<<10), 1<<20)

	fmt.Println("parley chat. /stop interrupts, /retry resumes after an error, /quit exits.")
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/stop":
			orch.Stop()
			continue
		case "/retry":
			if err := orch.Retry(); err != nil {
				fmt.Printf("retry: %v\n", err)
				continue
			}
		default:
			if err := orch.Submit(ctx, line); err != nil {
				fmt.Printf("submit: %v\n", err)
				continue
			}
		}
		if err := awaitRun(ctx, orch, in); err != nil {
			return err
		}
	}
}

// awaitRun blocks until the current run settles, surfacing approval
// prompts as they appear.
func awaitRun(ctx context.Context, orch *run.Orchestrator, in *bufio.Scanner) error {
	printed := orch.History().Len()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}

		if tool := orch.PendingApproval(); tool != nil {
			if err := promptApproval(ctx, orch, in, tool); err != nil {
				return err
			}
			continue
		}
		printed = printNewTurns(orch, printed)
		if !orch.IsLoading() {
			if msg := orch.Err(); msg != "" {
				fmt.Printf("error: %s (/retry to resume)\n", msg)
			}
			return nil
		}
	}
}

func promptApproval(ctx context.Context, orch *run.Orchestrator, in *bufio.Scanner, tool *agentapi.ToolData) error {
	fmt.Printf("\nagent wants to run %s", tool.ToolName)
	if tool.Reasoning != "" {
		fmt.Printf(" (%s)", tool.Reasoning)
	}
	if len(tool.Parameters) > 0 {
		if params, err := json.Marshal(tool.Parameters); err == nil {
			fmt.Printf("\n  parameters: %s", params)
		}
	}
	for {
		fmt.Print("\napprove? [y/n] ")
		if !in.Scan() {
			return in.Err()
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
			return orch.Approve(ctx)
		case "n", "no":
			return orch.Reject(ctx)
		}
	}
}

func printNewTurns(orch *run.Orchestrator, printed int) int {
	turns := orch.History().Turns()
	for ; printed < len(turns); printed++ {
		turn := turns[printed]
		if turn.Hidden || turn.Role != conversation.RoleAssistant {
			continue
		}
		if turn.Widget == nil {
			fmt.Println(turn.Text)
			continue
		}
		if text, ok := turn.Widget.Source.(string); ok && turn.Widget.Type == "text" {
			fmt.Println(text)
			continue
		}
		source, err := json.MarshalIndent(turn.Widget.Source, "  ", "  ")
		if err != nil {
			source = []byte(fmt.Sprintf("%v", turn.Widget.Source))
		}
		fmt.Printf("[%s]\n  %s\n", turn.Widget.Type, source)
	}
	return printed
}

// consoleRenderer satisfies the registry's renderer contract for a console
// that prints widgets instead of drawing them.
type consoleRenderer struct{}

func (consoleRenderer) Render(source any, emit widget.CallbackFunc) error { return nil }

func registerWidgets(registry *widget.Registry, widgets []config.WidgetConfig) error {
	for _, w := range widgets {
		err := registry.Register(widget.Definition{
			Type:         w.Type,
			Instructions: w.Instructions,
			SourceShape:  w.SourceShape,
			Options:      w.Options,
			Renderer:     consoleRenderer{},
		})
		if err != nil {
			return fmt.Errorf("widget %q: %w", w.Type, err)
		}
	}
	return nil
}

func buildBus(cfg config.BusConfig) (bus.Bus, error) {
	switch cfg.Kind {
	case "", "memory":
		return bus.NewMemoryBus(), nil
	case "nats":
		return bus.NewNATSBus(bus.NATSConfig{
			URL:     cfg.NATS.URL,
			Name:    cfg.NATS.Name,
			Timeout: cfg.NATS.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
