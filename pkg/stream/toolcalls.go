package stream

import (
	"maps"
	"slices"
	"strings"

	"github.com/rhuss/streamrelay/pkg/api"
)

// DefaultToolType is assigned to tool calls whose opening fragment names no
// type.
const DefaultToolType = "function"

// toolCallBuffer tracks incremental argument assembly for a single tool
// call index.
type toolCallBuffer struct {
	ID   string
	Type string
	Name string
	Args strings.Builder
}

// Accumulator merges tool-call fragments of one response into complete
// calls. It is not safe for concurrent use.
type Accumulator struct {
	calls map[int]*toolCallBuffer
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*toolCallBuffer)}
}

// Merge folds one fragment into the accumulator. A fragment carrying an id
// opens (or replaces) the call at its index; a fragment without an id
// appends its argument chunk to the call already open at that index.
//
// A continuation fragment for an index that was never opened is dropped and
// reported as an orphan; other calls are unaffected.
func (a *Accumulator) Merge(frag ToolCallFragment) error {
	if frag.ID != "" {
		buf := &toolCallBuffer{
			ID:   frag.ID,
			Type: frag.Type,
			Name: frag.Name,
		}
		if buf.Type == "" {
			buf.Type = DefaultToolType
		}
		buf.Args.WriteString(frag.ArgsChunk)
		a.calls[frag.Index] = buf
		return nil
	}

	buf, ok := a.calls[frag.Index]
	if !ok {
		return api.NewOrphanToolFragmentError(frag.Index)
	}
	if buf.Name == "" && frag.Name != "" {
		buf.Name = frag.Name
	}
	buf.Args.WriteString(frag.ArgsChunk)
	return nil
}

// Finalize returns the accumulated calls in ascending index order.
// Arguments are left as the raw concatenated string.
func (a *Accumulator) Finalize() []api.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	out := make([]api.ToolCall, 0, len(a.calls))
	for _, idx := range slices.Sorted(maps.Keys(a.calls)) {
		buf := a.calls[idx]
		out = append(out, api.ToolCall{
			ID:   buf.ID,
			Type: buf.Type,
			Function: api.FunctionCall{
				Name:      buf.Name,
				Arguments: buf.Args.String(),
			},
		})
	}
	return out
}

// Len reports the number of open calls.
func (a *Accumulator) Len() int {
	return len(a.calls)
}

// Reset discards all calls.
func (a *Accumulator) Reset() {
	clear(a.calls)
}
