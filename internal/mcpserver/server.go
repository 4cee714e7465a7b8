// Package mcpserver exposes an analysis session as Model Context Protocol
// tools. Every tool answers with JSON text.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/spaceused/internal/analyzer"
	"github.com/agentic-research/spaceused/internal/report"
)

// Opener analyses the database again, for the refresh tool.
type Opener func(ctx context.Context) (*analyzer.Session, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.log = l
		}
	}
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(srv *Server) { srv.version = v }
}

// WithReopen enables the refresh tool, which replaces the session with the
// one open returns.
func WithReopen(open Opener) Option {
	return func(srv *Server) { srv.reopen = open }
}

// Server answers tool calls from one analysed database.
type Server struct {
	sessions hotSwapSession
	title    string
	version  string
	reopen   Opener
	log      *slog.Logger
	mcp      *server.MCPServer
}

// New registers the tools for s. title names the database in summaries.
// The server takes ownership of s and closes it on Close.
func New(s *analyzer.Session, title string, opts ...Option) *Server {
	srv := &Server{
		title:   title,
		version: "dev",
		log:     slog.Default(),
	}
	srv.sessions.current = s
	for _, o := range opts {
		o(srv)
	}
	srv.mcp = server.NewMCPServer("spaceused", srv.version, server.WithToolCapabilities(srv.reopen != nil))

	srv.mcp.AddTool(mcp.NewTool("header",
		mcp.WithDescription("Decoded fields of the 100-byte database header"),
	), srv.handleHeader)

	srv.mcp.AddTool(mcp.NewTool("global_stats",
		mcp.WithDescription("Storage metrics of the whole database"),
		mcp.WithBoolean("exclude_indices", mcp.Description("Leave indices out of the totals")),
	), srv.handleGlobalStats)

	srv.mcp.AddTool(mcp.NewTool("table_stats",
		mcp.WithDescription("Storage metrics of one table, with its indices unless excluded"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Table name")),
		mcp.WithBoolean("exclude_indices", mcp.Description("Count the table without its indices")),
	), srv.handleTableStats)

	srv.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Storage metrics of one index"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Index name")),
	), srv.handleIndexStats)

	srv.mcp.AddTool(mcp.NewTool("indices_stats",
		mcp.WithDescription("Storage metrics of all indices taken together"),
	), srv.handleIndicesStats)

	srv.mcp.AddTool(mcp.NewTool("database_summary",
		mcp.WithDescription("Whole-file figures: page counts, freelist, auto-vacuum overhead, object counts"),
	), srv.handleSummary)

	if srv.reopen != nil {
		srv.mcp.AddTool(mcp.NewTool("refresh",
			mcp.WithDescription("Analyse the database file again, picking up changes made since the server started"),
		), srv.handleRefresh)
	}

	return srv
}

// MCP returns the underlying protocol server.
func (srv *Server) MCP() *server.MCPServer { return srv.mcp }

// ServeStdio serves tool calls on standard input and output until the
// client disconnects.
func (srv *Server) ServeStdio() error {
	srv.log.Info("serving MCP over stdio", "database", srv.title)
	return server.ServeStdio(srv.mcp)
}

// Close releases the current session.
func (srv *Server) Close() error {
	return srv.sessions.swap(nil)
}

func jsonResult(v any) *mcp.CallToolResult {
	return mcp.NewToolResultText(report.JSON(v))
}

func (srv *Server) toolError(tool string, err error) *mcp.CallToolResult {
	srv.log.Debug("tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

// answer runs query against the current session and wraps the result.
func (srv *Server) answer(tool string, query func(*analyzer.Session) (map[string]any, error)) *mcp.CallToolResult {
	var (
		out map[string]any
		err error
	)
	srv.sessions.with(func(s *analyzer.Session) { out, err = query(s) })
	if err != nil {
		return srv.toolError(tool, err)
	}
	return jsonResult(out)
}

func (srv *Server) handleHeader(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return srv.answer("header", func(s *analyzer.Session) (map[string]any, error) {
		return report.HeaderMap(s.Header()), nil
	}), nil
}

func (srv *Server) handleGlobalStats(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exclude := req.GetBool("exclude_indices", false)
	return srv.answer("global_stats", func(s *analyzer.Session) (map[string]any, error) {
		return s.GlobalStats(exclude).Map(), nil
	}), nil
}

func (srv *Server) handleTableStats(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return srv.toolError("table_stats", err), nil
	}
	exclude := req.GetBool("exclude_indices", false)
	return srv.answer("table_stats", func(s *analyzer.Session) (map[string]any, error) {
		m, err := s.TableStats(name, exclude)
		return m.Map(), err
	}), nil
}

func (srv *Server) handleIndexStats(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return srv.toolError("index_stats", err), nil
	}
	return srv.answer("index_stats", func(s *analyzer.Session) (map[string]any, error) {
		m, err := s.IndexStats(name)
		return m.Map(), err
	}), nil
}

func (srv *Server) handleIndicesStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return srv.answer("indices_stats", func(s *analyzer.Session) (map[string]any, error) {
		m, err := s.IndicesStats()
		return m.Map(), err
	}), nil
}

func (srv *Server) handleSummary(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return srv.answer("database_summary", func(s *analyzer.Session) (map[string]any, error) {
		out := report.Summarize(s).Map()
		out["database"] = srv.title
		tables := []any{}
		for _, t := range s.Tables() {
			tables = append(tables, t)
		}
		pages := map[string]any{}
		for t, n := range s.TableSpaceUsage() {
			pages[t] = n
		}
		out["tables"] = tables
		out["table_pages"] = pages
		return out, nil
	}), nil
}

func (srv *Server) handleRefresh(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	next, err := srv.reopen(ctx)
	if err != nil {
		return srv.toolError("refresh", err), nil
	}
	if err := srv.sessions.swap(next); err != nil {
		srv.log.Warn("closing previous session", "error", err)
	}
	srv.log.Info("database analysed again", "database", srv.title)
	return srv.handleSummary(ctx, mcp.CallToolRequest{})
}
