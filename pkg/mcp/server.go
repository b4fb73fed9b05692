package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/agekit/agekit/pkg/age"
	"github.com/agekit/agekit/pkg/connection"
)

// protocolVersion is the MCP protocol revision this server speaks.
const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// ServerConfig holds MCP server configuration.
type ServerConfig struct {
	// Name and Version are reported to the client during initialize.
	Name    string
	Version string
	// DefaultGraph is used when a tool call names no graph.
	DefaultGraph string
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Name:         "agekit",
		Version:      "0.1.0",
		DefaultGraph: "graph",
	}
}

// Server serves agekit graph tools over MCP stdio.
//
// One server owns one execution-context key: every database engine built on
// behalf of the connected client is scoped to this serving loop and disposed
// when the loop ends.
type Server struct {
	client *age.Client
	config *ServerConfig
	logger *zap.Logger
	key    connection.Key
}

// NewServer creates an MCP server over an age client. nil config and logger
// take defaults.
func NewServer(client *age.Client, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		client: client,
		config: config,
		logger: logger,
		key:    connection.NewKey(),
	}
}

// Run serves MCP over the process's stdin/stdout until EOF or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads line-delimited JSON-RPC requests from r and writes responses to
// w. The server's engine is disposed when the loop ends, whatever the reason.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	defer s.client.Manager().Dispose(context.WithoutCancel(ctx), s.key)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.respondError(w, nil, codeParseError, "parse error")
			continue
		}
		s.handle(ctx, w, &req)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed reading MCP transport: %w", err)
	}
	return nil
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolResult is the MCP tools/call result shape.
type toolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handle(ctx context.Context, w io.Writer, req *request) {
	// Notifications carry no id and get no response.
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	switch req.Method {
	case "initialize":
		if isNotification {
			return
		}
		s.respond(w, req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    s.config.Name,
				"version": s.config.Version,
			},
		})
	case "notifications/initialized":
		// nothing to do
	case "ping":
		if isNotification {
			return
		}
		s.respond(w, req.ID, map[string]any{})
	case "tools/list":
		s.respond(w, req.ID, map[string]any{"tools": GetToolDefinitions()})
	case "tools/call":
		s.handleToolCall(ctx, w, req)
	default:
		if !isNotification {
			s.respondError(w, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
		}
	}
}

func (s *Server) handleToolCall(ctx context.Context, w io.Writer, req *request) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.respondError(w, req.ID, codeInvalidParams, "invalid tool call params")
		return
	}

	s.logger.Debug("tool call", zap.String("tool", params.Name))

	text, err := s.callTool(ctx, params.Name, params.Arguments)
	if err != nil {
		// Tool failures are reported in-band so the model can react to them.
		s.respond(w, req.ID, toolResult{
			Content: []toolContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
		return
	}
	s.respond(w, req.ID, toolResult{
		Content: []toolContent{{Type: "text", Text: text}},
	})
}

func (s *Server) callTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	switch name {
	case "cypher":
		var args struct {
			Query   string   `json:"query"`
			Graph   string   `json:"graph"`
			Columns []string `json:"columns"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("invalid cypher arguments: %w", err)
		}
		if args.Query == "" {
			return "", fmt.Errorf("cypher requires a query")
		}
		graph := args.Graph
		if graph == "" {
			graph = s.config.DefaultGraph
		}
		maps, err := s.client.QueryMaps(ctx, s.key, connection.TxOptions{}, graph, args.Query, args.Columns)
		if err != nil {
			return "", err
		}
		return marshalResult(maps)

	case "list_graphs":
		names, err := s.client.ListGraphs(ctx, s.key)
		if err != nil {
			return "", err
		}
		return marshalResult(names)

	case "create_graph":
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("invalid create_graph arguments: %w", err)
		}
		if err := s.client.CreateGraph(ctx, s.key, args.Name); err != nil {
			return "", err
		}
		return fmt.Sprintf("graph %q created", args.Name), nil

	case "drop_graph":
		var args struct {
			Name    string `json:"name"`
			Cascade *bool  `json:"cascade"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("invalid drop_graph arguments: %w", err)
		}
		cascade := true
		if args.Cascade != nil {
			cascade = *args.Cascade
		}
		if err := s.client.DropGraph(ctx, s.key, args.Name, cascade); err != nil {
			return "", err
		}
		return fmt.Sprintf("graph %q dropped", args.Name), nil

	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

func (s *Server) respond(w io.Writer, id json.RawMessage, result any) {
	s.write(w, response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) respondError(w io.Writer, id json.RawMessage, code int, message string) {
	s.write(w, response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(w io.Writer, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
