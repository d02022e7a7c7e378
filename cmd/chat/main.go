// Command chat is a terminal chat client. It streams answers from a chat
// completions endpoint (usually a streamrelay server), prints reasoning
// separately from the answer, reveals the answer at a steady pace and runs
// tool calls against configured MCP servers.
//
// Ctrl-C stops the answer in progress; a second Ctrl-C at the prompt exits.
// "/reset" clears the conversation, "/exit" quits.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/config"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/relay"
	"github.com/rhuss/streamrelay/pkg/reveal"
	"github.com/rhuss/streamrelay/pkg/session"
	"github.com/rhuss/streamrelay/pkg/tools"
	"github.com/rhuss/streamrelay/pkg/tools/mcp"
)

const (
	dim   = "\033[2m"
	red   = "\033[31m"
	reset = "\033[0m"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	model := flag.String("model", "", "model override")
	system := flag.String("system", "", "system prompt")
	flag.Parse()

	if err := run(*configPath, *model, *system); err != nil {
		slog.Error("chat failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, model, system string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debug.Init(debug.Options{
		Categories: cfg.Debug.Categories,
		Level:      cfg.Debug.Level,
		Format:     cfg.Debug.Format,
	})
	if model != "" {
		cfg.Session.Model.Model = model
	}

	endpoint, err := url.Parse(cfg.Session.Endpoint)
	if err != nil || endpoint.Host == "" {
		return fmt.Errorf("invalid session.endpoint %q", cfg.Session.Endpoint)
	}

	// The client reuses the relay's upstream transport; heartbeats it
	// injects are dropped by the session like any other.
	sender := relay.New(relay.Config{
		BaseURL: endpoint.Scheme + "://" + endpoint.Host,
		Timeout: cfg.Session.Timeouts.Thinking,
	})

	executor, closeTools, err := buildTools(cfg.MCP.Servers)
	if err != nil {
		return err
	}
	defer closeTools()

	ctrl := session.New(session.Config{
		Path:          endpoint.Path,
		APIKey:        cfg.Session.APIKey,
		Stream:        cfg.Session.Stream,
		MaxToolRounds: cfg.Session.MaxToolRounds,
		Model: session.ModelConfig{
			Model:            cfg.Session.Model.Model,
			Temperature:      cfg.Session.Model.Temperature,
			TopP:             cfg.Session.Model.TopP,
			PresencePenalty:  cfg.Session.Model.PresencePenalty,
			FrequencyPenalty: cfg.Session.Model.FrequencyPenalty,
			MaxTokens:        cfg.Session.Model.MaxTokens,
		},
		Timeouts: session.Timeouts{
			Default:        cfg.Session.Timeouts.Default,
			Thinking:       cfg.Session.Timeouts.Thinking,
			ThinkingModels: cfg.Session.Timeouts.ThinkingModels,
		},
		Reveal: reveal.Config{
			Interval: cfg.Reveal.Interval,
			Divisor:  cfg.Reveal.Divisor,
		},
	}, sender, session.WithTools(executor))

	var history []api.ChatMessage
	if system != "" {
		history = append(history, api.ChatMessage{Role: api.RoleSystem, Content: system})
	}

	fmt.Printf("streamrelay chat (%s, %s)\n", cfg.Session.Model.Model, cfg.Session.Endpoint)
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			history = history[:0]
			if system != "" {
				history = append(history, api.ChatMessage{Role: api.RoleSystem, Content: system})
			}
			fmt.Println("conversation cleared")
			continue
		}

		history = append(history, api.ChatMessage{Role: api.RoleUser, Content: line})
		answer, ok := exchange(ctrl, history)
		if ok {
			history = append(history, api.ChatMessage{Role: api.RoleAssistant, Content: answer})
		} else {
			history = history[:len(history)-1]
		}
	}
}

// exchange runs one turn and reports the answer to keep in the history.
func exchange(ctrl *session.Controller, history []api.ChatMessage) (string, bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var answer string
	inReasoning := false
	start := time.Now()

	state := ctrl.Chat(ctx, session.ChatRequest{Messages: history}, session.Callbacks{
		OnReasoning: func(_, delta string) {
			if !inReasoning {
				fmt.Print(dim)
				inReasoning = true
			}
			fmt.Print(delta)
		},
		OnUpdate: func(_, delta string) {
			if inReasoning {
				fmt.Print(reset + "\n\n")
				inReasoning = false
			}
			fmt.Print(delta)
		},
		OnToolCall: func(call api.ToolCall, result tools.ToolResult) {
			status := "ok"
			if result.IsError {
				status = "error"
			}
			fmt.Printf("%s[tool %s: %s]%s\n", dim, call.Function.Name, status, reset)
		},
		OnFinish: func(text string, _ *session.Response) {
			answer = text
		},
		OnError: func(err error) {
			fmt.Printf("%s%s%s", red, err.Error(), reset)
		},
	})
	if inReasoning {
		fmt.Print(reset)
	}
	fmt.Printf("\n%s[%s in %s]%s\n", dim, state, time.Since(start).Round(time.Millisecond), reset)

	return answer, state == session.StateFinished || (state == session.StateCancelled && answer != "")
}

// buildTools combines the built-in tools with those of the configured MCP
// servers. Built-ins win name conflicts.
func buildTools(servers []config.MCPServerConfig) (tools.Executor, func(), error) {
	builtins := tools.NewRegistry()
	builtins.Register(api.ToolDefinition{
		Function: api.FunctionDef{
			Name:        "current_time",
			Description: "Returns the current local date and time",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}, func(context.Context, map[string]any) (string, error) {
		return time.Now().Format(time.RFC1123), nil
	})

	if len(servers) == 0 {
		return builtins, func() {}, nil
	}

	cfgs := make([]mcp.ServerConfig, 0, len(servers))
	for _, s := range servers {
		cfgs = append(cfgs, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	remote, err := mcp.Connect(ctx, cfgs)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := remote.Close(); err != nil {
			slog.Warn("closing MCP connections", "error", err)
		}
	}
	return tools.MultiExecutor{builtins, remote}, closeFn, nil
}
