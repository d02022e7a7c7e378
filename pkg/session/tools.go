package session

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
	"github.com/rhuss/streamrelay/pkg/tools"
)

// runTools executes the calls of one round concurrently and returns the
// messages that continue the conversation: the assistant message carrying
// the calls, then one tool message per call in call order.
func (x *exchange) runTools(ctx context.Context, calls []api.ToolCall, content string) ([]api.ChatMessage, error) {
	results := make([]tools.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		if r := tools.Rejection(call, x.ctrl.cfg.AllowedTools); r != nil {
			slog.Warn("tool call rejected", "exchange_id", x.id, "tool", call.Function.Name)
			observability.ToolExecutionsTotal.WithLabelValues(call.Function.Name, "rejected").Inc()
			results[i] = *r
			continue
		}

		g.Go(func() error {
			debug.Log(debug.Tools, "executing tool",
				"exchange_id", x.id,
				"tool", call.Function.Name,
				"call_id", call.ID,
			)
			res, err := x.ctrl.tools.Execute(gctx, call)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			status := "success"
			switch {
			case err != nil:
				status = "error"
				slog.Warn("tool execution failed", "exchange_id", x.id, "tool", call.Function.Name, "error", err)
				res = tools.ErrorResult(call, "tool execution failed: %v", err)
			case res == nil:
				status = "error"
				res = tools.ErrorResult(call, "tool %q returned no result", call.Function.Name)
			case res.IsError:
				status = "tool_error"
			}
			observability.ToolExecutionsTotal.WithLabelValues(call.Function.Name, status).Inc()

			results[i] = *res
			results[i].CallID = call.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msgs := make([]api.ChatMessage, 0, len(calls)+1)
	msgs = append(msgs, api.AssistantToolCallMessage(content, calls))
	for i, call := range calls {
		if x.cb.OnToolCall != nil {
			res := results[i]
			x.emit(func() { x.cb.OnToolCall(call, res) })
		}
		msgs = append(msgs, api.ToolResultMessage(call.ID, results[i].Output))
	}
	return msgs, nil
}
