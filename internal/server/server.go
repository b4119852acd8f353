package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/omr-engine/internal/barcode"
	"github.com/ironsheep/omr-engine/internal/engine"
	"github.com/ironsheep/omr-engine/internal/imaging"
	"github.com/ironsheep/omr-engine/internal/ocr"
	"github.com/ironsheep/omr-engine/internal/store"
	"github.com/ironsheep/omr-engine/internal/template"
)

// Version is reported in the initialize handshake.
const Version = "0.1.0"

const (
	jsonrpcVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Server handles MCP protocol communication
type Server struct {
	logger   *slog.Logger
	cache    *imaging.ImageCache
	engine   *engine.Engine
	decoder  barcode.Decoder
	resolver template.Resolver
	pages    store.PageStore
	text     *ocr.Reader
	thorough bool

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Logs must not go to stdout, which carries the
// protocol.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine sets the engine used by omr_apply_template.
func WithEngine(e *engine.Engine) Option {
	return func(s *Server) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithTemplateDir sets where templates named by marker barcodes are looked up.
func WithTemplateDir(dir string) Option {
	return func(s *Server) { s.resolver.Dir = dir }
}

// WithPageStore enables the stored-page tools.
func WithPageStore(p store.PageStore) Option {
	return func(s *Server) { s.pages = p }
}

// WithOCR enables omr_ocr_region.
func WithOCR(r *ocr.Reader) Option {
	return func(s *Server) { s.text = r }
}

// WithThorough sets whether scan analysis reads marker barcodes from every row
// of the page. It is on by default.
func WithThorough(thorough bool) Option {
	return func(s *Server) { s.thorough = thorough }
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts ...Option) *Server {
	s := &Server{
		logger:    slog.Default(),
		cache:     imaging.NewImageCache(),
		decoder:   barcode.NewReader(),
		thorough:  true,
		templates: make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.New(engine.WithLogger(s.logger), engine.WithDecoder(s.decoder), engine.WithThorough(s.thorough))
	}
	return s
}

// Run serves MCP on stdin and stdout until stdin is closed.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Template documents and base64 images can make long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	enc := json.NewEncoder(w)

	send := func(resp *MCPResponse) {
		if resp == nil {
			return
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("response not written", "error", err)
		}
	}

	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		req := new(MCPRequest)
		if err := json.Unmarshal(frame, req); err != nil {
			s.logger.Warn("malformed request", "error", err)
			send(s.errorResponse(nil, codeParseError, "Parse error", err.Error()))
			continue
		}
		send(s.handleRequest(req))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// maxRequestSize bounds one request line.
const maxRequestSize = 1024 * 1024

// handleRequest dispatches on the method. Notifications get no response.
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.reply(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: "omr-engine", Version: Version},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.reply(req.ID, map[string]any{"tools": GetToolDefinitions()})
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return s.reply(req.ID, struct{}{})
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, "Method not found: "+req.Method, "")
	}
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

func (s *Server) reply(id, result any) *MCPResponse {
	return &MCPResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}
