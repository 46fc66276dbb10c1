package mcpapi

import (
	"context"
	"strings"
	"time"

	"github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// cardRef is the argument shape shared by single-card tools.
type cardRef struct {
	CardID int64  `json:"card_id"`
	Actor  string `json:"actor"`
}

// registerCardTools registers card CRUD, move and completion tools.
func (t toolSet) registerCardTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_cards",
			mcp.WithDescription("List a board's active cards with blocker, blocked and independent flags."),
			mcp.WithNumber("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		bindTool("list_cards", func(ctx context.Context, args struct {
			BoardID int64 `json:"board_id"`
		}) (any, error) {
			flags, err := t.service.ListCardsWithDependencyFlags(ctx, args.BoardID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"cards": common.ToCardFlagsViews(flags)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.get_card",
			mcp.WithDescription("Return one card."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
		),
		bindTool("get_card", func(ctx context.Context, args cardRef) (any, error) {
			card, err := t.service.GetCard(ctx, args.CardID)
			if err != nil {
				return nil, err
			}
			return common.ToCardView(card), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.create_card",
			mcp.WithDescription("Create a card in a category. Progress follows the category."),
			mcp.WithNumber("category_id", mcp.Required(), mcp.Description("Category identifier")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Card name")),
			mcp.WithString("description", mcp.Description("Card description")),
			mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum("highest", "high", "medium", "low", "lowest")),
			mcp.WithString("sr_number", mcp.Description("Serial number, unique per board")),
			mcp.WithString("due_date", mcp.Description("RFC3339 due date")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("create_card", func(ctx context.Context, args common.CreateCardRequest) (any, error) {
			in := app.CreateCardInput{
				CategoryID:  args.CategoryID,
				Name:        args.Name,
				Description: args.Description,
				SerialNo:    args.SerialNo,
				DueAt:       args.DueAt,
				Actor:       t.actor(args.Actor),
			}
			if strings.TrimSpace(args.Priority) != "" {
				priority, err := domain.ParsePriority(args.Priority)
				if err != nil {
					return nil, err
				}
				in.Priority = priority
			}
			card, err := t.service.CreateCard(ctx, in)
			if err != nil {
				return nil, err
			}
			return common.ToCardView(card), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.update_card",
			mcp.WithDescription("Rename a card or change its description, priority or due date. Each change records its own activity."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("name", mcp.Description("New name")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum("highest", "high", "medium", "low", "lowest")),
			mcp.WithString("due_date", mcp.Description("New RFC3339 due date")),
			mcp.WithBoolean("clear_due_date", mcp.Description("Remove the due date")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("update_card", func(ctx context.Context, args struct {
			CardID int64 `json:"card_id"`
			common.UpdateCardRequest
		}) (any, error) {
			card, err := common.UpdateCard(ctx, t.service, args.CardID, args.UpdateCardRequest, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToCardView(card), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.move_card",
			mcp.WithDescription("Move a card to another category on its board. Entering Done requires closed blockers and a finished checklist."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithNumber("category_id", mcp.Required(), mcp.Description("Destination category identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("move_card", func(ctx context.Context, args struct {
			CardID     int64  `json:"card_id"`
			CategoryID int64  `json:"category_id"`
			Actor      string `json:"actor"`
		}) (any, error) {
			card, err := t.service.MoveToCategory(ctx, args.CardID, args.CategoryID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToCardView(card), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.set_completion",
			mcp.WithDescription("Check a card complete (moves it to Done) or reopen it."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithBoolean("checked", mcp.Required(), mcp.Description("true completes, false reopens")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("set_completion", func(ctx context.Context, args struct {
			CardID  int64  `json:"card_id"`
			Checked bool   `json:"checked"`
			Actor   string `json:"actor"`
		}) (any, error) {
			card, err := t.service.SetCompletion(ctx, args.CardID, args.Checked, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToCardView(card), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.delete_card",
			mcp.WithDescription("Delete a card and every card converted from its checklist, recursively."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("delete_card", func(ctx context.Context, args cardRef) (any, error) {
			deleted, err := t.service.DeleteCard(ctx, args.CardID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.DeleteResult{DeletedCards: deleted}, nil
		}),
	)
}

// registerDependencyTools registers blocker edge tools.
func (t toolSet) registerDependencyTools(srv *mcpserver.MCPServer) {
	type edgeArgs struct {
		BlockerID int64  `json:"blocker_id"`
		BlockedID int64  `json:"blocked_id"`
		Actor     string `json:"actor"`
	}

	srv.AddTool(
		mcp.NewTool(
			"cardflow.add_dependency",
			mcp.WithDescription("Make blocker_id block blocked_id. Both cards must be open."),
			mcp.WithNumber("blocker_id", mcp.Required(), mcp.Description("Blocking card identifier")),
			mcp.WithNumber("blocked_id", mcp.Required(), mcp.Description("Blocked card identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("add_dependency", func(ctx context.Context, args edgeArgs) (any, error) {
			dep, err := t.service.AddDependency(ctx, args.BlockerID, args.BlockedID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToDependencyView(dep), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.remove_dependency",
			mcp.WithDescription("Remove a blocker edge. Removing a missing edge succeeds."),
			mcp.WithNumber("blocker_id", mcp.Required(), mcp.Description("Blocking card identifier")),
			mcp.WithNumber("blocked_id", mcp.Required(), mcp.Description("Blocked card identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("remove_dependency", func(ctx context.Context, args edgeArgs) (any, error) {
			if err := t.service.RemoveDependency(ctx, args.BlockerID, args.BlockedID, t.actor(args.Actor)); err != nil {
				return nil, err
			}
			return map[string]any{"removed": true}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.get_dependencies",
			mcp.WithDescription("List the cards blocking a card and the cards it blocks. Archived cards are excluded."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
		),
		bindTool("get_dependencies", func(ctx context.Context, args cardRef) (any, error) {
			deps, err := t.service.GetDependencies(ctx, args.CardID)
			if err != nil {
				return nil, err
			}
			return common.ToCardDependenciesView(deps), nil
		}),
	)
}

// registerChecklistTools registers checklist item tools, including conversion.
func (t toolSet) registerChecklistTools(srv *mcpserver.MCPServer) {
	type itemArgs struct {
		ItemID int64  `json:"item_id"`
		Title  string `json:"title"`
		Actor  string `json:"actor"`
	}

	srv.AddTool(
		mcp.NewTool(
			"cardflow.list_checklist",
			mcp.WithDescription("List a card's checklist items."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
		),
		bindTool("list_checklist", func(ctx context.Context, args cardRef) (any, error) {
			items, err := t.service.ListChecklistItems(ctx, args.CardID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"items": common.ToChecklistItemViews(items)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.add_checklist_item",
			mcp.WithDescription("Append a checklist item to a card."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
			mcp.WithString("due_date", mcp.Description("RFC3339 due date")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("add_checklist_item", func(ctx context.Context, args struct {
			CardID int64      `json:"card_id"`
			Title  string     `json:"title"`
			DueAt  *time.Time `json:"due_date"`
			Actor  string     `json:"actor"`
		}) (any, error) {
			item, err := t.service.AddChecklistItem(ctx, args.CardID, args.Title, args.DueAt, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToChecklistItemView(item), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.update_checklist_item",
			mcp.WithDescription("Rename a checklist item. A converted item renames its card too."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Checklist item identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("update_checklist_item", func(ctx context.Context, args itemArgs) (any, error) {
			item, err := t.service.UpdateChecklistItem(ctx, args.ItemID, args.Title, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToChecklistItemView(item), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.toggle_checklist_item",
			mcp.WithDescription("Toggle a checklist item. A converted item completes or reopens its card."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Checklist item identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("toggle_checklist_item", func(ctx context.Context, args itemArgs) (any, error) {
			item, err := t.service.ToggleChecklistItem(ctx, args.ItemID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ToChecklistItemView(item), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.toggle_all_checklist_items",
			mcp.WithDescription("Complete every item, or clear every item when all are already complete."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("toggle_all_checklist_items", func(ctx context.Context, args cardRef) (any, error) {
			items, err := t.service.ToggleAllChecklistItems(ctx, args.CardID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return map[string]any{"items": common.ToChecklistItemViews(items)}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.convert_checklist_item",
			mcp.WithDescription("Convert a checklist item into a card that blocks the parent card."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Checklist item identifier")),
			mcp.WithNumber("category_id", mcp.Required(), mcp.Description("Category for the new card")),
			mcp.WithNumber("parent_card_id", mcp.Required(), mcp.Description("Card owning the item")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("convert_checklist_item", func(ctx context.Context, args struct {
			ItemID int64 `json:"item_id"`
			common.ConvertRequest
		}) (any, error) {
			result, err := t.service.ConvertChecklistItem(ctx, args.ItemID, args.CategoryID, args.ParentCardID, t.actor(args.Actor))
			if err != nil {
				return nil, err
			}
			return common.ConvertView(result), nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.delete_checklist_item",
			mcp.WithDescription("Delete one checklist item. A converted card stays on the board."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Checklist item identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("delete_checklist_item", func(ctx context.Context, args itemArgs) (any, error) {
			if err := t.service.DeleteChecklistItem(ctx, args.ItemID, t.actor(args.Actor)); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true}, nil
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"cardflow.clear_checklist",
			mcp.WithDescription("Delete every checklist item on a card."),
			mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("actor", mcp.Description("Acting user")),
		),
		bindTool("clear_checklist", func(ctx context.Context, args cardRef) (any, error) {
			if err := t.service.DeleteAllChecklistItems(ctx, args.CardID, t.actor(args.Actor)); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true}, nil
		}),
	)
}
