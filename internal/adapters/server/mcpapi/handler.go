// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
	DefaultActor  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the card engine as tools.
func NewHandler(cfg Config, service common.CardService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("card service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	tools := toolSet{service: service, defaultActor: cfg.DefaultActor}
	tools.registerBoardTools(mcpSrv)
	tools.registerCardTools(mcpSrv)
	tools.registerDependencyTools(mcpSrv)
	tools.registerChecklistTools(mcpSrv)
	tools.registerReleaseTools(mcpSrv)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "cardflow"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	cfg.DefaultActor = common.ResolveActor(cfg.DefaultActor, "mcp")
	return cfg
}

// toolSet binds tool handlers to one service.
type toolSet struct {
	service      common.CardService
	defaultActor string
}

// actor returns the caller-supplied actor or the configured default.
func (t toolSet) actor(raw string) string {
	return common.ResolveActor(raw, t.defaultActor)
}

// bindTool decodes tool arguments into T, runs fn and encodes its result as JSON content.
func bindTool[T any](name string, fn func(context.Context, T) (any, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if err := req.BindArguments(&args); err != nil {
			return invalidRequestToolResult(err), nil
		}
		out, err := fn(ctx, args)
		if err != nil {
			return toolResultFromError(err), nil
		}
		result, err := mcp.NewToolResultJSON(out)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return result, nil
	}
}

// toolResultFromError maps engine errors into MCP tool errors prefixed with their kind.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("internal_error: unknown error")
	}
	_, code := common.ErrorStatus(err)
	return mcp.NewToolResultError(code + ": " + err.Error())
}

func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("validation_error: malformed arguments")
	}
	return mcp.NewToolResultError("validation_error: " + err.Error())
}

// registerBoardTools registers board and category tools.
func (t toolSet) registerBoardTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_boards",
			mcp.WithDescription("List every board."),
		),
		bindTool("list_boards", func(ctx context.Context, _ struct{}) (any, error) {
			boards, err := t.service.ListBoards(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]common.BoardView, 0, len(boards))
			for _, b := range boards {
				out = append(out, common.ToBoardView(b))
			}
			return map[string]any{"boards": out}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.create_board",
			mcp.WithDescription("Create a board with the built-in Backlog, Todo, In Progress, Done and Release categories."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Board name")),
		),
		bindTool("create_board", func(ctx context.Context, args common.CreateBoardRequest) (any, error) {
			board, categories, err := t.service.CreateBoard(ctx, args.Name)
			if err != nil {
				return nil, err
			}
			return common.BoardCreated{Board: common.ToBoardView(board), Categories: common.ToCategoryViews(categories)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_categories",
			mcp.WithDescription("List a board's categories in board order."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		bindTool("list_categories", func(ctx context.Context, args struct {
			BoardID int64 `json:"board_id"`
		}) (any, error) {
			categories, err := t.service.ListCategories(ctx, args.BoardID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"categories": common.ToCategoryViews(categories)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.create_category",
			mcp.WithDescription("Add a custom category to a board."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Category name")),
			mcp.WithString("color", mcp.Description("Hex color")),
		),
		bindTool("create_category", func(ctx context.Context, args struct {
			BoardID int64  `json:"board_id"`
			Name    string `json:"name"`
			Color   string `json:"color"`
		}) (any, error) {
			category, err := t.service.CreateCategory(ctx, args.BoardID, args.Name, args.Color)
			if err != nil {
				return nil, err
			}
			return common.ToCategoryView(category), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.delete_category",
			mcp.WithDescription("Delete a custom category and cascade-delete its cards."),
			mcp.WithNumber("category_id", mcp.Required(), mcp.Description("Category identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("delete_category", func(ctx context.Context, args struct {
			CategoryID int64  `json:"category_id"`
			Actor      string `json:"actor"`
		}) (any, error) {
			deleted, err := t.service.DeleteCategory(ctx, args.CategoryID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.DeleteResult{DeletedCards: deleted}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.delete_board",
			mcp.WithDescription("Delete a board and cascade-delete every card on it."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("delete_board", func(ctx context.Context, args struct {
			BoardID int64  `json:"board_id"`
			Actor   string `json:"actor"`
		}) (any, error) {
			deleted, err := t.service.DeleteBoard(ctx, args.BoardID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.DeleteResult{DeletedCards: deleted}, nil
		}),
	)
}
