package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dynmcp/dynmcp/internal/dispatcher"
)

// defaultPersona is used whenever a request omits persona (spec.md §3
// "Persona: a single string carried in the call context; default is
// 'default'").
const defaultPersona = "default"

// Server implements the MCP protocol over stdio. meta holds the small,
// static set of privileged built-in tools (internal/metatools); every
// other dispatched name is resolved through dispatcher.
type Server struct {
	meta       *Registry
	dispatcher *dispatcher.Dispatcher
	info       ServerInfo
	logger     *slog.Logger
}

// NewServer creates an MCP server.
func NewServer(meta *Registry, disp *dispatcher.Dispatcher, info ServerInfo, logger *slog.Logger) *Server {
	return &Server{
		meta:       meta,
		dispatcher: disp,
		info:       info,
		logger:     logger,
	}
}

// Run reads JSON-RPC requests from stdin and writes responses to stdout.
// It blocks until stdin is closed or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	s.logger.Info("dynmcp server started", "name", s.info.Name, "version", s.info.Version)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.HandleMessage(ctx, line)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to write response", "error", err)
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading stdin: %w", err)
	}

	s.logger.Info("dynmcp server stopped (stdin closed)")
	return nil
}

// HandleMessage parses a JSON-RPC request and dispatches to the
// appropriate handler. Exported so transport adapters (http.go) can drive
// the server directly outside Run's stdio loop.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Error("failed to parse request", "error", err)
		return &Response{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    ErrCodeParse,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.ID == nil && req.Method == "notifications/initialized" {
		s.logger.Info("client initialized")
		return nil
	}
	if req.ID == nil {
		s.logger.Debug("received notification", "method", req.Method)
		return nil
	}

	s.logger.Debug("handling request", "method", req.Method, "id", string(req.ID))

	result, rpcErr := s.route(ctx, &req)
	resp := &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

// route sends a request to the appropriate handler method.
func (s *Server) route(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "tools/list":
		return s.handleToolsList(ctx, req.Params)
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "prompts/list":
		return s.handlePromptsList(ctx, req.Params)
	case "prompts/get":
		return s.handlePromptsGet(ctx, req.Params)
	case "resources/list":
		return s.handleResourcesList(ctx, req.Params)
	case "resources/read":
		return s.handleResourcesRead(ctx, req.Params)
	default:
		return nil, &RPCError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid initialize params", Data: err.Error()}
		}
	}

	s.logger.Info("client connecting",
		"client", initParams.ClientInfo.Name,
		"client_version", initParams.ClientInfo.Version,
		"protocol_version", initParams.ProtocolVersion,
	)

	caps := ServerCapability{
		Tools:     &ToolsCapability{},
		Prompts:   &PromptsCapability{},
		Resources: &ResourcesCapability{},
	}

	return &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    caps,
		ServerInfo:      s.info,
	}, nil
}

// handleToolsList merges the static meta-tool set with the persona-scoped
// dynamic listing from the Dispatcher.
func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p ToolsListParams
	_ = json.Unmarshal(params, &p)
	persona := orDefault(p.Persona)

	defs := s.meta.List()

	views, err := s.dispatcher.ListTools(ctx, persona)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("listing tools: %v", err)}
	}
	for _, v := range views {
		defs = append(defs, ToolDefinition{Name: v.Name, Description: v.Description, InputSchema: v.InputSchema})
	}

	return &ToolsListResult{Tools: defs}, nil
}

// handleToolsCall checks the static meta-tool set first; any other name is
// routed to the Dispatcher (spec.md §4.5 call_tool).
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var callParams ToolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid tools/call params", Data: err.Error()}
	}
	persona := orDefault(callParams.Persona)

	if tool := s.meta.Get(callParams.Name); tool != nil {
		s.logger.Info("calling meta-tool", "tool", callParams.Name)
		result, err := tool.Execute(ctx, callParams.Arguments)
		if err != nil {
			s.logger.Error("meta-tool execution failed", "tool", callParams.Name, "error", err)
			return ErrorResult(fmt.Sprintf("tool execution failed: %v", err)), nil
		}
		return result, nil
	}

	var arguments map[string]any
	if len(callParams.Arguments) > 0 {
		if err := json.Unmarshal(callParams.Arguments, &arguments); err != nil {
			return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid tools/call arguments", Data: err.Error()}
		}
	}

	s.logger.Info("dispatching tool", "tool", callParams.Name, "persona", persona)

	result, err := s.dispatcher.CallTool(ctx, callParams.Name, persona, arguments)
	if err != nil {
		s.logger.Error("tool dispatch failed", "tool", callParams.Name, "error", err)
		return ErrorResult(err.Error()), nil
	}

	text, err := RenderResult(result, Format(callParams.Format))
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	return &ToolsCallResult{Content: []ContentBlock{TextContent(text)}}, nil
}

func (s *Server) handlePromptsList(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p PromptsListParams
	_ = json.Unmarshal(params, &p)
	persona := orDefault(p.Persona)

	defs := s.meta.ListPrompts()
	records, err := s.dispatcher.ListPrompts(ctx, persona)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("listing prompts: %v", err)}
	}
	for _, p := range records {
		var args []PromptArgument
		for _, a := range p.ArgumentsSchema {
			args = append(args, PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
		}
		defs = append(defs, PromptDefinition{Name: p.Name, Description: p.Description, Arguments: args})
	}
	return &PromptsListResult{Prompts: defs}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var getParams PromptsGetParams
	if err := json.Unmarshal(params, &getParams); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid prompts/get params", Data: err.Error()}
	}
	persona := orDefault(getParams.Persona)

	if prompt := s.meta.GetPrompt(getParams.Name); prompt != nil {
		result, err := prompt.Get(getParams.Arguments)
		if err != nil {
			return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("prompt error: %v", err)}
		}
		return result, nil
	}

	arguments := make(map[string]any, len(getParams.Arguments))
	for k, v := range getParams.Arguments {
		arguments[k] = v
	}

	text, err := s.dispatcher.GetPrompt(ctx, getParams.Name, persona, arguments)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: err.Error()}
	}

	return &PromptsGetResult{
		Messages: []PromptMessage{{Role: "user", Content: TextContent(text)}},
	}, nil
}

func (s *Server) handleResourcesList(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p ResourcesListParams
	_ = json.Unmarshal(params, &p)
	persona := orDefault(p.Persona)

	defs := s.meta.ListResources()
	views, err := s.dispatcher.ListResources(ctx, persona)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("listing resources: %v", err)}
	}
	for _, v := range views {
		defs = append(defs, ResourceDefinition{URI: v.URI, Name: v.Name, Description: v.Description, MimeType: v.MimeType})
	}
	return &ResourcesListResult{Resources: defs}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var readParams ResourcesReadParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid resources/read params", Data: err.Error()}
	}
	persona := orDefault(readParams.Persona)

	if resource := s.meta.GetResource(readParams.URI); resource != nil {
		result, err := resource.Read()
		if err != nil {
			return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("resource read error: %v", err)}
		}
		return result, nil
	}

	body, err := s.dispatcher.ReadResource(ctx, readParams.URI, persona)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("resource read error: %v", err)}
	}

	return &ResourcesReadResult{
		Contents: []ResourceContent{{URI: readParams.URI, Text: body}},
	}, nil
}

func orDefault(persona string) string {
	if persona == "" {
		return defaultPersona
	}
	return persona
}
