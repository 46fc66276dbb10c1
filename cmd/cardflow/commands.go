package main

import (
	"context"
	"fmt"
	"io"

	servercommon "github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/spf13/cobra"
)

func boardCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create, list, show and delete boards",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a board with the built-in categories",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					board, categories, err := env.svc.CreateBoard(ctx, args[0])
					if err != nil {
						return err
					}
					view := servercommon.BoardCreated{Board: servercommon.ToBoardView(board), Categories: servercommon.ToCategoryViews(categories)}
					return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "board #%d %s\n", view.Board.ID, view.Board.Name)
						for _, category := range view.Categories {
							_, _ = fmt.Fprintf(w, "  %s %d%%\n", category.Name, category.Progress)
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List boards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					boards, err := env.svc.ListBoards(ctx)
					if err != nil {
						return err
					}
					views := make([]servercommon.BoardView, 0, len(boards))
					for _, b := range boards {
						views = append(views, servercommon.ToBoardView(b))
					}
					return emit(cmd.OutOrStdout(), opts, views, func(w io.Writer) {
						for _, b := range views {
							_, _ = fmt.Fprintf(w, "#%d %s\n", b.ID, b.Name)
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "show <board-id>",
			Short: "Show a board's categories and cards with dependency flags",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					board, err := env.svc.GetBoard(ctx, boardID)
					if err != nil {
						return err
					}
					categories, err := env.svc.ListCategories(ctx, boardID)
					if err != nil {
						return err
					}
					flags, err := env.svc.ListCardsWithDependencyFlags(ctx, boardID)
					if err != nil {
						return err
					}
					view := struct {
						Board      servercommon.BoardView       `json:"board"`
						Categories []servercommon.CategoryView  `json:"categories"`
						Cards      []servercommon.CardFlagsView `json:"cards"`
					}{servercommon.ToBoardView(board), servercommon.ToCategoryViews(categories), servercommon.ToCardFlagsViews(flags)}
					return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "board #%d %s\n", view.Board.ID, view.Board.Name)
						for _, category := range view.Categories {
							_, _ = fmt.Fprintf(w, "  %s %d%%\n", category.Name, category.Progress)
						}
						if len(view.Cards) == 0 {
							_, _ = fmt.Fprintln(w, "no cards")
							return
						}
						_, _ = fmt.Fprintln(w, boardTable(view.Categories, view.Cards))
					})
				})
			},
		},
		&cobra.Command{
			Use:   "delete <board-id>",
			Short: "Delete a board and every card on it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					deleted, err := env.svc.DeleteBoard(ctx, boardID, env.actor)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, servercommon.DeleteResult{DeletedCards: deleted}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "deleted board #%d (%d cards)\n", boardID, deleted)
					})
				})
			},
		},
	)
	return cmd
}

func printCategories(w io.Writer, categories []servercommon.CategoryView) {
	for _, c := range categories {
		_, _ = fmt.Fprintf(w, "  category #%d %s (%s, %d%%)\n", c.ID, c.Name, c.Kind, c.Progress)
	}
}

func categoryCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage board categories",
	}
	var color string
	add := &cobra.Command{
		Use:   "add <board-id> <name>",
		Short: "Add a custom category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseIDArg("board id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				category, err := env.svc.CreateCategory(ctx, boardID, args[1], color)
				if err != nil {
					return err
				}
				view := servercommon.ToCategoryView(category)
				return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
					printCategories(w, []servercommon.CategoryView{view})
				})
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "hex color")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <board-id>",
			Short: "List a board's categories",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					categories, err := env.svc.ListCategories(ctx, boardID)
					if err != nil {
						return err
					}
					views := servercommon.ToCategoryViews(categories)
					return emit(cmd.OutOrStdout(), opts, views, func(w io.Writer) { printCategories(w, views) })
				})
			},
		},
		&cobra.Command{
			Use:   "rm <category-id>",
			Short: "Delete a custom category and its cards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				categoryID, err := parseIDArg("category id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					deleted, err := env.svc.DeleteCategory(ctx, categoryID, env.actor)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, servercommon.DeleteResult{DeletedCards: deleted}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "deleted category #%d (%d cards)\n", categoryID, deleted)
					})
				})
			},
		},
	)
	return cmd
}

// cardAction runs fn against one card id argument and prints the resulting card.
func cardAction(opts *cliOptions, use, short string, fn func(context.Context, *runtimeEnv, int64, []string) (domain.Card, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseIDArg("card id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				card, err := fn(ctx, env, cardID, args[1:])
				if err != nil {
					return err
				}
				view := servercommon.ToCardView(card)
				return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, cardLine(view))
				})
			})
		},
	}
}

func cardCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Create, edit, move and complete cards",
	}

	var (
		description string
		priority    string
		serialNo    string
		due         string
	)
	create := &cobra.Command{
		Use:   "create <category-id> <name>",
		Short: "Create a card in a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := parseIDArg("category id", args[0])
			if err != nil {
				return err
			}
			dueAt, err := parseDateFlag(due)
			if err != nil {
				return err
			}
			var parsedPriority domain.Priority
			if priority != "" {
				if parsedPriority, err = domain.ParsePriority(priority); err != nil {
					return err
				}
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				card, err := env.svc.CreateCard(ctx, app.CreateCardInput{
					CategoryID:  categoryID,
					Name:        args[1],
					Description: description,
					Priority:    parsedPriority,
					SerialNo:    serialNo,
					DueAt:       dueAt,
					Actor:       env.actor,
				})
				if err != nil {
					return err
				}
				view := servercommon.ToCardView(card)
				return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, cardLine(view))
				})
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "card description")
	create.Flags().StringVar(&priority, "priority", "", "highest|high|medium|low|lowest")
	create.Flags().StringVar(&serialNo, "sr", "", "external serial number")
	create.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")

	var (
		editName        string
		editDescription string
		editPriority    string
		editDue         string
		clearDue        bool
	)
	var edit *cobra.Command
	edit = cardAction(opts, "edit <card-id>", "Rename a card or change its description, priority or due date",
		func(ctx context.Context, env *runtimeEnv, cardID int64, _ []string) (domain.Card, error) {
			req, err := editRequest(edit, editName, editDescription, editPriority, editDue, clearDue)
			if err != nil {
				return domain.Card{}, err
			}
			return servercommon.UpdateCard(ctx, env.svc, cardID, req, env.actor)
		})
	edit.Flags().StringVar(&editName, "name", "", "new name")
	edit.Flags().StringVar(&editDescription, "description", "", "new description")
	edit.Flags().StringVar(&editPriority, "priority", "", "new priority")
	edit.Flags().StringVar(&editDue, "due", "", "new due date (YYYY-MM-DD)")
	edit.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")

	show := &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show a card with its dependencies and checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseIDArg("card id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				card, err := env.svc.GetCard(ctx, cardID)
				if err != nil {
					return err
				}
				deps, err := env.svc.GetDependencies(ctx, cardID)
				if err != nil {
					return err
				}
				items, err := env.svc.ListChecklistItems(ctx, cardID)
				if err != nil {
					return err
				}
				view := struct {
					Card         servercommon.CardView             `json:"card"`
					Dependencies servercommon.CardDependenciesView `json:"dependencies"`
					Checklist    []servercommon.ChecklistItemView  `json:"checklist"`
				}{servercommon.ToCardView(card), servercommon.ToCardDependenciesView(deps), servercommon.ToChecklistItemViews(items)}
				return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, cardLine(view.Card))
					if view.Card.Description != "" {
						_, _ = fmt.Fprintf(w, "  %s\n", view.Card.Description)
					}
					printDependencies(w, view.Dependencies)
					for _, item := range view.Checklist {
						_, _ = fmt.Fprintf(w, "  %s\n", checklistLine(item))
					}
				})
			})
		},
	}

	cmd.AddCommand(
		create,
		edit,
		show,
		cardAction(opts, "move <card-id> <category-id>", "Move a card to another category on its board",
			func(ctx context.Context, env *runtimeEnv, cardID int64, rest []string) (domain.Card, error) {
				if len(rest) != 1 {
					return domain.Card{}, fmt.Errorf("move takes a card id and a category id")
				}
				categoryID, err := parseIDArg("category id", rest[0])
				if err != nil {
					return domain.Card{}, err
				}
				return env.svc.MoveToCategory(ctx, cardID, categoryID, env.actor)
			}),
		cardAction(opts, "complete <card-id>", "Mark a card completed once its blockers and checklist allow it",
			func(ctx context.Context, env *runtimeEnv, cardID int64, _ []string) (domain.Card, error) {
				return env.svc.SetCompletion(ctx, cardID, true, env.actor)
			}),
		cardAction(opts, "reopen <card-id>", "Clear a card's completion",
			func(ctx context.Context, env *runtimeEnv, cardID int64, _ []string) (domain.Card, error) {
				return env.svc.SetCompletion(ctx, cardID, false, env.actor)
			}),
		&cobra.Command{
			Use:   "delete <card-id>",
			Short: "Delete a card and every card converted from its checklist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					deleted, err := env.svc.DeleteCard(ctx, cardID, env.actor)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, servercommon.DeleteResult{DeletedCards: deleted}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "deleted card #%d (%d cards)\n", cardID, deleted)
					})
				})
			},
		},
	)
	return cmd
}

// editRequest builds an update from the flags the user actually set.
func editRequest(cmd *cobra.Command, name, description, priority, due string, clearDue bool) (servercommon.UpdateCardRequest, error) {
	var req servercommon.UpdateCardRequest
	flags := cmd.Flags()
	if flags.Changed("name") {
		req.Name = &name
	}
	if flags.Changed("description") {
		req.Description = &description
	}
	if flags.Changed("priority") {
		req.Priority = &priority
	}
	if flags.Changed("due") {
		dueAt, err := parseDateFlag(due)
		if err != nil {
			return servercommon.UpdateCardRequest{}, err
		}
		req.DueAt = dueAt
	}
	req.ClearDueAt = clearDue
	return req, nil
}

func printDependencies(w io.Writer, deps servercommon.CardDependenciesView) {
	for _, blocker := range deps.Blockers {
		_, _ = fmt.Fprintf(w, "  blocked by %s\n", cardLine(blocker))
	}
	for _, blocked := range deps.BlockedBy {
		_, _ = fmt.Fprintf(w, "  blocks %s\n", cardLine(blocked))
	}
}

func depCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage blocker dependencies between cards",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <blocker-id> <blocked-id>",
			Short: "Make one card block another",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				blockerID, blockedID, err := parseEdgeArgs(args)
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					dep, err := env.svc.AddDependency(ctx, blockerID, blockedID, env.actor)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, servercommon.ToDependencyView(dep), func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "card #%d now blocks card #%d\n", dep.BlockerID, dep.BlockedID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <blocker-id> <blocked-id>",
			Short: "Remove a blocker dependency",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				blockerID, blockedID, err := parseEdgeArgs(args)
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					if err := env.svc.RemoveDependency(ctx, blockerID, blockedID, env.actor); err != nil {
						return err
					}
					view := map[string]int64{"blocker_id": blockerID, "blocked_id": blockedID}
					return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "card #%d no longer blocks card #%d\n", blockerID, blockedID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "ls <card-id>",
			Short: "List a card's blockers and the cards it blocks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					deps, err := env.svc.GetDependencies(ctx, cardID)
					if err != nil {
						return err
					}
					view := servercommon.ToCardDependenciesView(deps)
					return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
						if len(view.Blockers) == 0 && len(view.BlockedBy) == 0 {
							_, _ = fmt.Fprintf(w, "card #%d is independent\n", cardID)
							return
						}
						printDependencies(w, view)
					})
				})
			},
		},
	)
	return cmd
}

func parseEdgeArgs(args []string) (int64, int64, error) {
	blockerID, err := parseIDArg("blocker id", args[0])
	if err != nil {
		return 0, 0, err
	}
	blockedID, err := parseIDArg("blocked id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return blockerID, blockedID, nil
}
