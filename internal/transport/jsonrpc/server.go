package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/model"
)

// Server reads newline-delimited JSON-RPC 2.0 requests from an input
// stream and writes responses to an output stream.
type Server struct {
	facade  *engine.Facade
	log     logger.Logger
	limiter *rate.Limiter
}

// Config configures request-admission pacing for the stdio transport.
type Config struct {
	RateLimit float64
	Burst     int
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config { return Config{RateLimit: 50, Burst: 100} }

// NewServer creates a Server bound to facade.
func NewServer(cfg Config, facade *engine.Facade, log logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}
	return &Server{
		facade:  facade,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

// Serve reads one request per line from in until EOF or ctx is canceled,
// writing one response per request with an ID to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = enc.Encode(errorResponse(nil, codeInternalError, "invalid JSON-RPC request"))
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		resp := s.handleRequest(ctx, req)
		if req.ID == nil {
			continue // notification: no response expected
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return newResponse(req.ID, handleInitialize())
	case "tools/list":
		return newResponse(req.ID, map[string]interface{}{"tools": toolDefinitions()})
	case "tools/call":
		callCtx, cancel := timeoutContext(ctx)
		defer cancel()
		return newResponse(req.ID, s.handleToolCall(callCtx, req.Params))
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func handleInitialize() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"serverInfo":      map[string]interface{}{"name": "recall-mcp", "version": "1.0.0"},
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolCall(ctx context.Context, raw json.RawMessage) toolContent {
	var params toolCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return errorResult("invalid tool call parameters")
	}

	switch params.Name {
	case "memory_search":
		return s.toolMemorySearch(ctx, params.Arguments)
	case "memory_store":
		return s.toolMemoryStore(ctx, params.Arguments)
	case "memory_get":
		return s.toolMemoryGet(ctx, params.Arguments)
	case "memory_delete":
		return s.toolMemoryDelete(ctx, params.Arguments)
	case "memory_stats":
		return s.toolMemoryStats(ctx)
	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", params.Name))
	}
}

type searchArgs struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	IndexOnly bool   `json:"index_only"`
}

func (s *Server) toolMemorySearch(ctx context.Context, raw json.RawMessage) toolContent {
	var args searchArgs
	_ = json.Unmarshal(raw, &args)
	if args.Query == "" {
		return errorResult("Query cannot be empty")
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}

	resp, err := s.facade.Search(ctx, model.Query{Text: args.Query, Limit: args.Limit, IndexOnly: args.IndexOnly})
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err))
	}
	if len(resp.Hits) == 0 {
		return textResult("No memories found matching your query.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(resp.Hits))
	for i, hit := range resp.Hits {
		m := hit.Memory
		bd := hit.ScoreBreakdown
		fmt.Fprintf(&b, "%d. **%s** (score: %.3f)\n   ID: %s\n   Type: %s | Priority: %s | Tags: %s\n   Scores: sem=%.2f kw=%.2f rec=%.2f imp=%.2f\n",
			i+1, m.Title, hit.Score, m.ID, m.Type, m.Priority, strings.Join(m.Tags, ", "),
			bd.Semantic, bd.Keyword, bd.Recency, bd.Importance)
		if !args.IndexOnly && m.Content != "" {
			fmt.Fprintf(&b, "   Content: %s\n", m.Content)
		}
		b.WriteString("\n")
	}
	return textResult(b.String())
}

type storeArgs struct {
	Content    string   `json:"content"`
	Title      string   `json:"title"`
	MemoryType string   `json:"memory_type"`
	Priority   string   `json:"priority"`
	Tags       []string `json:"tags"`
}

func (s *Server) toolMemoryStore(ctx context.Context, raw json.RawMessage) toolContent {
	var args storeArgs
	_ = json.Unmarshal(raw, &args)
	if args.Content == "" {
		return errorResult("Content is required")
	}
	if args.Title == "" {
		return errorResult("Title is required")
	}

	memType := model.MemoryType(args.MemoryType)
	if memType == "" || !memType.Valid() {
		memType = model.TypeObservation
	}
	priority := model.Priority(args.Priority)
	if priority == "" || !priority.Valid() {
		priority = model.PriorityMedium
	}

	id, hasEmbedding, err := s.facade.Store(ctx, engine.StoreInput{
		Title:    args.Title,
		Content:  args.Content,
		Type:     memType,
		Priority: priority,
		Tags:     args.Tags,
	})
	if err != nil && id == "" {
		return errorResult(fmt.Sprintf("Failed to store memory: %s", err))
	}

	embedStatus := "unavailable"
	if hasEmbedding {
		embedStatus = "generated"
	}
	return textResult(fmt.Sprintf("Memory stored successfully.\nID: %s\nTitle: %s\nType: %s\nEmbedding: %s",
		id, args.Title, memType, embedStatus))
}

type getArgs struct {
	IDs []string `json:"ids"`
}

func (s *Server) toolMemoryGet(ctx context.Context, raw json.RawMessage) toolContent {
	var args getArgs
	_ = json.Unmarshal(raw, &args)
	if len(args.IDs) == 0 {
		return errorResult("ids array cannot be empty")
	}

	var b strings.Builder
	found := 0
	for _, id := range args.IDs {
		m, err := s.facade.Get(ctx, id)
		if err != nil {
			continue
		}
		found++
		fmt.Fprintf(&b, "## %s (%s)\n**ID:** %s\n**Type:** %s | **Priority:** %s\n**Tags:** %s\n**Created:** %s\n**Content:**\n%s\n\n---\n\n",
			m.Title, m.Type, m.ID, m.Type, m.Priority, strings.Join(m.Tags, ", "),
			m.CreatedAt.Format("2006-01-02 15:04"), m.Content)
	}
	if found == 0 {
		return textResult("No memories found with the given IDs.")
	}
	return textResult(b.String())
}

type deleteArgs struct {
	ID string `json:"id"`
}

func (s *Server) toolMemoryDelete(ctx context.Context, raw json.RawMessage) toolContent {
	var args deleteArgs
	_ = json.Unmarshal(raw, &args)
	if args.ID == "" {
		return errorResult("id is required")
	}

	removed, err := s.facade.Delete(ctx, args.ID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to delete memory: %s", err))
	}
	if !removed {
		return textResult(fmt.Sprintf("Memory %s not found.", args.ID))
	}
	return textResult(fmt.Sprintf("Memory %s deleted successfully.", args.ID))
}

func (s *Server) toolMemoryStats(ctx context.Context) toolContent {
	stats, err := s.facade.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to get stats: %s", err))
	}

	embedStatus := "not loaded"
	if stats.HasEmbedder {
		embedStatus = "active"
	}
	return textResult(fmt.Sprintf("Memory System Stats:\n- Total memories: %d\n- Indexed for search: %d\n- Embedding engine: %s\n- Search mode: %s",
		stats.TotalMemories, stats.IndexedCount, embedStatus, stats.SearchMode))
}

// timeoutContext bounds a single tool call so a hung facade operation
// cannot stall the stdio loop indefinitely.
func timeoutContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 30*time.Second)
}
