// Package transport serves the request processor to an orchestrator.
//
// The default transport speaks JSON-RPC 2.0 over stdio using newline-delimited
// JSON messages. Stdout carries protocol messages only; logs go to stderr.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Handler processes decoded requests.
type Handler interface {
	Process(ctx context.Context, req *schema.Request) *schema.Response
	Killed() bool
}

// Message is a JSON-RPC 2.0 message (request, notification or response).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // absent for notifications
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// InitializeResult answers the initialize method.
type InitializeResult struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Methods  []string `json:"methods"`
	Protocol string   `json:"protocol"`
}

// Server reads requests from r and writes responses to w, one at a time.
type Server struct {
	reader    io.Reader
	writer    io.Writer
	mu        sync.Mutex
	handler   Handler
	validator *schema.RequestValidator
	version   string
	log       *log.Logger
}

// NewServer creates a server over the given streams.
func NewServer(r io.Reader, w io.Writer, h Handler, version string, logger *log.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		reader:    r,
		writer:    w,
		handler:   h,
		validator: schema.NewRequestValidator(),
		version:   version,
		log:       logger,
	}
}

// Run serves until the input ends, a shutdown or kill request arrives, or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.log.Warn("malformed frame", "error", err)
			s.sendError(nil, CodeParseError, fmt.Sprintf("parse error: %v", err))
			continue
		}
		if msg.JSONRPC != "2.0" || msg.Method == "" {
			s.sendError(msg.ID, CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\" and method is required")
			continue
		}
		if stop := s.dispatch(ctx, &msg); stop {
			return nil
		}
	}
	return scanner.Err()
}

// dispatch handles one message and reports whether serving should stop.
func (s *Server) dispatch(ctx context.Context, msg *Message) bool {
	switch msg.Method {
	case "initialize":
		s.sendResult(msg.ID, InitializeResult{
			Name:     "steprunner",
			Version:  s.version,
			Methods:  []string{"initialize", "process", "shutdown"},
			Protocol: "jsonrpc-2.0/ndjson",
		})
	case "process":
		if err := s.validator.Validate(msg.Params); err != nil {
			s.replyError(msg.ID, CodeInvalidParams, err.Error())
			return false
		}
		var req schema.Request
		if err := json.Unmarshal(msg.Params, &req); err != nil {
			s.replyError(msg.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
			return false
		}
		resp := s.handler.Process(ctx, &req)
		s.sendResult(msg.ID, resp)
		if s.handler.Killed() {
			s.log.Info("kill received, stopping")
			return true
		}
	case "shutdown":
		s.sendResult(msg.ID, map[string]string{"status": "shutting down"})
		return true
	default:
		s.replyError(msg.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", msg.Method))
	}
	return false
}

func (s *Server) sendResult(id json.RawMessage, result any) {
	if id == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.sendError(id, CodeInvalidRequest, fmt.Sprintf("encode result: %v", err))
		return
	}
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: data})
}

// replyError answers a request with an error; notifications get no reply.
func (s *Server) replyError(id json.RawMessage, code int, message string) {
	if id == nil {
		s.log.Warn("notification failed", "code", code, "error", message)
		return
	}
	s.sendError(id, code, message)
}

// sendError replies with an error. Parse errors carry a null id.
func (s *Server) sendError(id json.RawMessage, code int, message string) {
	if id == nil {
		id = json.RawMessage("null")
	}
	s.send(&Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}

func (s *Server) send(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(msg)
	fmt.Fprintf(s.writer, "%s\n", data)
}
