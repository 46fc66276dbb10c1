package mcpapi

import (
	"context"
	"strings"

	"github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerReleaseTools registers activity feed, release, archive and sheet import tools.
func (t toolSet) registerReleaseTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_activities",
			mcp.WithDescription("Return a card's activity feed, newest first, with rendered messages."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
		),
		bindTool("list_activities", func(ctx context.Context, args cardRef) (any, error) {
			activities, err := t.service.ListActivities(ctx, args.CardID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"activities": common.ToActivityViews(activities)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.record_activity",
			mcp.WithDescription("Record a comment or another activity on a card."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("details", mcp.Required(), mcp.Description("Activity details")),
			mcp.WithString("type", mcp.Description("Event type, COMMENT_ADDED when empty")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("record_activity", func(ctx context.Context, args struct {
			CardID int64 `json:"card_id"`
			common.CommentRequest
		}) (any, error) {
			eventType := domain.EventCommentAdded
			if strings.TrimSpace(args.Type) != "" {
				parsed, err := domain.ParseEventType(args.Type)
				if err != nil {
					return nil, err
				}
				eventType = parsed
			}
			activity, err := t.service.RecordActivity(ctx, args.CardID, eventType, args.Details, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToActivityView(activity), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.release_version",
			mcp.WithDescription("Release completed cards under a new version."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Version name")),
			mcp.WithArray("card_ids", mcp.Required(), mcp.Description("Cards to release"), mcp.WithNumberItems()),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("release_version", func(ctx context.Context, args struct {
			BoardID int64 `json:"board_id"`
			common.ReleaseRequest
		}) (any, error) {
			version, cards, err := t.service.ReleaseVersion(ctx, args.BoardID, args.Name, args.CardIDs, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ReleaseView{Version: common.ToVersionView(version), Cards: common.ToCardViews(cards)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_versions",
			mcp.WithDescription("List a board's released versions."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		bindTool("list_versions", func(ctx context.Context, args struct {
			BoardID int64 `json:"board_id"`
		}) (any, error) {
			versions, err := t.service.ListVersions(ctx, args.BoardID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"versions": common.ToVersionViews(versions)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_release_cards",
			mcp.WithDescription("List unreleased completed cards, or the cards of one version when version_id is set."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("version_id", mcp.Description("Version identifier")),
		),
		bindTool("list_release_cards", func(ctx context.Context, args struct {
			BoardID   int64 `json:"board_id"`
			VersionID int64 `json:"version_id"`
		}) (any, error) {
			var (
				cards []domain.Card
				err   error
			)
			if args.VersionID > 0 {
				cards, err = t.service.ListVersionCards(ctx, args.BoardID, args.VersionID)
			} else {
				cards, err = t.service.ListUnreleasedCards(ctx, args.BoardID)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"cards": common.ToCardViews(cards)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.archive_cards",
			mcp.WithDescription("Archive cards without releasing them."),
			mcp.WithArray("card_ids", mcp.Required(), mcp.Description("Cards to archive"), mcp.WithNumberItems()),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("archive_cards", func(ctx context.Context, args common.ArchiveRequest) (any, error) {
			cards, err := t.service.ArchiveCards(ctx, args.CardIDs, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return map[string]any{"cards": common.ToCardViews(cards)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.import_sheet",
			mcp.WithDescription("Bulk-create cards from sheet rows. The first row is the header: Sr Number, Issue, Card Name, Priority, Category, Due Date."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithArray("rows", mcp.Required(), mcp.Description("Rows of cells, header first"), mcp.Items(map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			})),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("import_sheet", func(ctx context.Context, args struct {
			BoardID int64 `json:"board_id"`
			common.ImportRequest
		}) (any, error) {
			result, err := t.service.ImportSheet(ctx, args.BoardID, args.Rows, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ImportView(result), nil
		}),
	)
}
