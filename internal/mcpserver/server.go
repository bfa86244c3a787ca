// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Arbor tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aldergrove/arbor/internal/articleservice"
)

// Server wraps the MCP server with Arbor tools.
type Server struct {
	mcp *server.MCPServer
	svc *articleservice.Service
}

// New creates a new MCP server with all Arbor tools registered.
func New(svc *articleservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Arbor",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_articles",
		mcp.WithDescription("Full-text search through article content, titles, and tags. "+
			"Supports quoted phrases, AND/OR/NOT, title:/tags: field scoping, and trailing-* wildcards."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("garden", mcp.Description("Optional garden slug to restrict the search")),
	), s.searchArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read the full content of a Markdown article."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Content path (e.g. blog/growing-basil.md)")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("create_article",
		mcp.WithDescription("Create a new Markdown article at the specified path. "+
			"Content MUST follow the canonical article format (YAML frontmatter, "+
			"Markdown body with [[wikilinks]]). Read the contract first via "+
			"the get_article_contract tool or the arbor://article-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Content path for the new article (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Arbor article format contract")),
	), s.createArticle)

	s.mcp.AddTool(mcp.NewTool("get_article_contract",
		mcp.WithDescription("Returns the canonical Arbor article format contract. "+
			"Call this before creating or updating articles to ensure correct structure."),
	), s.getArticleContract)

	s.mcp.AddTool(mcp.NewTool("list_gardens",
		mcp.WithDescription("List all gardens (top-level content collections)."),
	), s.listGardens)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List a garden's articles, newest first."),
		mcp.WithString("garden", mcp.Required(), mcp.Description("Garden slug")),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve a wikilink token to its destination article URL."),
		mcp.WithString("token", mcp.Required(), mcp.Description("Wikilink token, e.g. 'Growing Basil' or 'herbs/Pests'")),
		mcp.WithString("garden", mcp.Description("Garden of the linking article, for tie-breaking")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all articles that link to the specified article."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Content path of the article to find backlinks for")),
	), s.getBacklinks)

	// Resource: article format contract.
	s.mcp.AddResource(
		mcp.NewResource("arbor://article-format", "Article Format Contract",
			mcp.WithResourceDescription("Canonical Markdown article format that all articles must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readArticleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gardenSlug := ""
	if g, gErr := req.RequireString("garden"); gErr == nil {
		gardenSlug = g
	}
	results, err := s.svc.Search(ctx, query, gardenSlug, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	article, err := s.svc.GetByPath(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(article.Content), nil
}

func (s *Server) createArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	article, err := s.svc.Create(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", path, article.URL)), nil
}

func (s *Server) listGardens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gardens, err := s.svc.Gardens(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(gardens, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gardenSlug, err := req.RequireString("garden")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.ListGarden(ctx, gardenSlug, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, item := range items {
		paths = append(paths, item.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := req.RequireString("token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gardenSlug := ""
	if g, gErr := req.RequireString("garden"); gErr == nil {
		gardenSlug = g
	}
	res, err := s.svc.Resolve(ctx, token, gardenSlug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	article, err := s.svc.GetByPath(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if len(article.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(article.Backlinks, "\n")), nil
}

func (s *Server) getArticleContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ArticleFormatContract), nil
}

func (s *Server) readArticleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "arbor://article-format",
			MIMEType: "text/markdown",
			Text:     ArticleFormatContract,
		},
	}, nil
}
