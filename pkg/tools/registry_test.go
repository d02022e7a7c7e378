package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/streamrelay/pkg/api"
)

func weatherDef(name string) api.ToolDefinition {
	return api.ToolDefinition{Function: api.FunctionDef{Name: name, Description: "weather lookup"}}
}

func argCall(id, name, args string) api.ToolCall {
	return api.ToolCall{ID: id, Type: "function", Function: api.FunctionCall{Name: name, Arguments: args}}
}

func TestRegistry_Definitions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(weatherDef("tool_b"), nil)
	reg.Register(weatherDef("tool_a"), nil)

	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("Definitions() returned %d tools, want 2", len(defs))
	}
	if defs[0].Function.Name != "tool_b" || defs[1].Function.Name != "tool_a" {
		t.Errorf("Definitions() order = %s, %s; want registration order", defs[0].Function.Name, defs[1].Function.Name)
	}
	if defs[0].Type != "function" {
		t.Errorf("Type = %q, want default \"function\"", defs[0].Type)
	}
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(weatherDef("dup"), func(context.Context, map[string]any) (string, error) { return "first", nil })
	reg.Register(weatherDef("dup"), func(context.Context, map[string]any) (string, error) { return "second", nil })

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	res, err := reg.Execute(context.Background(), argCall("c1", "dup", ""))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "first" {
		t.Errorf("Output = %q, want \"first\"", res.Output)
	}
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(weatherDef("get_weather"), func(_ context.Context, args map[string]any) (string, error) {
		city, _ := args["city"].(string)
		return "sunny in " + city, nil
	})
	reg.Register(weatherDef("broken"), func(context.Context, map[string]any) (string, error) {
		return "", errors.New("backend down")
	})
	reg.Register(weatherDef("panics"), func(context.Context, map[string]any) (string, error) {
		panic("boom")
	})

	tests := []struct {
		name      string
		call      api.ToolCall
		wantOut   string
		wantError bool
	}{
		{"success", argCall("c1", "get_weather", `{"city":"Paris"}`), "sunny in Paris", false},
		{"empty arguments", argCall("c2", "get_weather", ""), "sunny in ", false},
		{"invalid arguments", argCall("c3", "get_weather", `{"city":`), "invalid arguments JSON", true},
		{"function error", argCall("c4", "broken", "{}"), "backend down", true},
		{"panic recovered", argCall("c5", "panics", "{}"), "panicked", true},
		{"unknown tool", argCall("c6", "nope", "{}"), "no tool registered", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := reg.Execute(context.Background(), tt.call)
			if err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if res.CallID != tt.call.ID {
				t.Errorf("CallID = %q, want %q", res.CallID, tt.call.ID)
			}
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantError)
			}
			if !strings.Contains(res.Output, tt.wantOut) {
				t.Errorf("Output = %q, want it to contain %q", res.Output, tt.wantOut)
			}
		})
	}
}

func TestMultiExecutor(t *testing.T) {
	first := NewRegistry()
	first.Register(weatherDef("shared"), func(context.Context, map[string]any) (string, error) { return "first", nil })
	second := NewRegistry()
	second.Register(weatherDef("shared"), func(context.Context, map[string]any) (string, error) { return "second", nil })
	second.Register(weatherDef("only_second"), func(context.Context, map[string]any) (string, error) { return "second-only", nil })

	multi := MultiExecutor{first, second}

	defs := multi.Definitions()
	if len(defs) != 2 {
		t.Fatalf("Definitions() = %d entries, want 2 (deduplicated)", len(defs))
	}

	if !multi.CanExecute("only_second") {
		t.Error("CanExecute(only_second) = false, want true")
	}
	if multi.CanExecute("missing") {
		t.Error("CanExecute(missing) = true, want false")
	}

	res, err := multi.Execute(context.Background(), argCall("c1", "shared", ""))
	if err != nil || res.Output != "first" {
		t.Errorf("Execute(shared) = %+v, %v; want output from first executor", res, err)
	}

	res, err = multi.Execute(context.Background(), argCall("c2", "only_second", ""))
	if err != nil || res.Output != "second-only" {
		t.Errorf("Execute(only_second) = %+v, %v", res, err)
	}

	res, err = multi.Execute(context.Background(), argCall("c3", "missing", ""))
	if err != nil {
		t.Fatalf("Execute(missing) error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Output, "unknown tool") {
		t.Errorf("Execute(missing) = %+v, want unknown tool error result", res)
	}
}
