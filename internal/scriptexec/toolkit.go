package scriptexec

import (
	"fmt"
	"log/slog"
)

// Context is the capability set handed to a script tool instance (§4.7 step
// 6): the dispatched context, a read-only meta-session, an optional
// data-session, a log helper, and the sub-executor closure for composing
// calls. Script artifacts import this type via the synthetic "toolkit"
// package registered with the interpreter in symbols.go.
type Context struct {
	Persona     string
	ToolName    string
	MetaSession interface{}
	DataSession interface{}
	Logger      *slog.Logger
	SubExecutor func(toolName string, arguments map[string]interface{}) (interface{}, error)
}

// Log writes a diagnostic line through the server's structured logger
// (stderr), never stdout: under the stdio transport, stdout carries only
// the JSON-RPC stream, and a stray printed line there would corrupt it.
func (c *Context) Log(format string, args ...interface{}) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(fmt.Sprintf(format, args...), "tool", c.ToolName, "persona", c.Persona)
}

// Call invokes another tool through the dispatcher, the Go-side expression
// of the sub-executor closure spec.md §4.7 step 6 and §7's "Coroutine/async
// control flow" note describe.
func (c *Context) Call(toolName string, arguments map[string]interface{}) (interface{}, error) {
	if c.SubExecutor == nil {
		return nil, fmt.Errorf("scriptexec: no sub-executor available in this context")
	}
	return c.SubExecutor(toolName, arguments)
}

// Tool is the base symbol every script artifact's class must be a strict
// descendant of (§4.7 step 4). A Go type satisfies it by defining Run.
type Tool interface {
	Run(arguments map[string]interface{}) (interface{}, error)
}

// ContextReceiver is an optional capability: if a tool class defines
// SetContext, the Executor calls it after instantiation and before Run,
// the Go expression of "instantiate that class with the context" (step 5).
type ContextReceiver interface {
	SetContext(ctx *Context)
}
