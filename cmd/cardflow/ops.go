package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	serveradapter "github.com/hylla/cardflow/internal/adapters/server"
	servercommon "github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/adapters/sheet"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/spf13/cobra"
)

func checklistCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Manage a card's checklist and convert items into cards",
	}

	var due string
	add := &cobra.Command{
		Use:   "add <card-id> <title>",
		Short: "Append a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseIDArg("card id", args[0])
			if err != nil {
				return err
			}
			dueAt, err := parseDateFlag(due)
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				item, err := env.svc.AddChecklistItem(ctx, cardID, args[1], dueAt, env.actor)
				if err != nil {
					return err
				}
				return emitItem(cmd.OutOrStdout(), opts, item)
			})
		},
	}
	add.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")

	itemAction := func(use, short string, fn func(context.Context, *runtimeEnv, int64, []string) (domain.ChecklistItem, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				itemID, err := parseIDArg("item id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					item, err := fn(ctx, env, itemID, args[1:])
					if err != nil {
						return err
					}
					return emitItem(cmd.OutOrStdout(), opts, item)
				})
			},
		}
	}

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "ls <card-id>",
			Short: "List a card's checklist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					items, err := env.svc.ListChecklistItems(ctx, cardID)
					if err != nil {
						return err
					}
					return emitItems(cmd.OutOrStdout(), opts, servercommon.ToChecklistItemViews(items))
				})
			},
		},
		itemAction("edit <item-id> <title>", "Rename a checklist item",
			func(ctx context.Context, env *runtimeEnv, itemID int64, rest []string) (domain.ChecklistItem, error) {
				if len(rest) != 1 {
					return domain.ChecklistItem{}, fmt.Errorf("edit takes an item id and a title")
				}
				return env.svc.UpdateChecklistItem(ctx, itemID, rest[0], env.actor)
			}),
		itemAction("toggle <item-id>", "Flip one item's completion",
			func(ctx context.Context, env *runtimeEnv, itemID int64, _ []string) (domain.ChecklistItem, error) {
				return env.svc.ToggleChecklistItem(ctx, itemID, env.actor)
			}),
		&cobra.Command{
			Use:   "toggle-all <card-id>",
			Short: "Complete every item, or reopen them all when every item is complete",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					items, err := env.svc.ToggleAllChecklistItems(ctx, cardID, env.actor)
					if err != nil {
						return err
					}
					return emitItems(cmd.OutOrStdout(), opts, servercommon.ToChecklistItemViews(items))
				})
			},
		},
		&cobra.Command{
			Use:   "convert <card-id> <item-id> <category-id>",
			Short: "Promote a checklist item into a card that blocks its parent",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				itemID, err := parseIDArg("item id", args[1])
				if err != nil {
					return err
				}
				categoryID, err := parseIDArg("category id", args[2])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					result, err := env.svc.ConvertChecklistItem(ctx, itemID, categoryID, cardID, env.actor)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, servercommon.ConvertView(result), func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "converted item %d into card #%d %s\n", itemID, result.NewCardID, result.NewCardTitle)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <item-id>",
			Short: "Delete one checklist item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				itemID, err := parseIDArg("item id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					if err := env.svc.DeleteChecklistItem(ctx, itemID, env.actor); err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, map[string]int64{"deleted_item": itemID}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "deleted item %d\n", itemID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "clear <card-id>",
			Short: "Delete every checklist item on a card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardID, err := parseIDArg("card id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					if err := env.svc.DeleteAllChecklistItems(ctx, cardID, env.actor); err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, map[string]int64{"cleared_card": cardID}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "cleared checklist on card #%d\n", cardID)
					})
				})
			},
		},
	)
	return cmd
}

func emitItem(w io.Writer, opts *cliOptions, item domain.ChecklistItem) error {
	view := servercommon.ToChecklistItemView(item)
	return emit(w, opts, view, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, checklistLine(view))
	})
}

func emitItems(w io.Writer, opts *cliOptions, views []servercommon.ChecklistItemView) error {
	return emit(w, opts, views, func(w io.Writer) {
		if len(views) == 0 {
			_, _ = fmt.Fprintln(w, "checklist is empty")
			return
		}
		for _, item := range views {
			_, _ = fmt.Fprintln(w, checklistLine(item))
		}
	})
}

func importCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <board-id> <file>",
		Short: "Bulk-create cards from a CSV or TSV sheet",
		Long: "The first row is the header: Sr Number, Issue, Card Name, Priority, Category, Due Date.\n" +
			"Rows that fail validation are reported and skipped; the rest are created.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseIDArg("board id", args[0])
			if err != nil {
				return err
			}
			rows, err := sheet.ReadFile(args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				result, err := env.svc.ImportSheet(ctx, boardID, rows, env.actor)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, servercommon.ImportView(result), func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "imported %d cards (batch %s)\n", result.CreatedCount, result.BatchID)
					for _, rowErr := range result.Errors {
						_, _ = fmt.Fprintf(w, "  %s\n", rowErr)
					}
				})
			})
		},
	}
}

func releaseCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release completed cards under versions, or archive cards",
	}

	var versionID int64
	cards := &cobra.Command{
		Use:   "cards <board-id>",
		Short: "List unreleased completed cards, or one version's cards with --version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseIDArg("board id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				var list []domain.Card
				if versionID > 0 {
					list, err = env.svc.ListVersionCards(ctx, boardID, versionID)
				} else {
					list, err = env.svc.ListUnreleasedCards(ctx, boardID)
				}
				if err != nil {
					return err
				}
				views := servercommon.ToCardViews(list)
				return emit(cmd.OutOrStdout(), opts, views, func(w io.Writer) { printCards(w, views) })
			})
		},
	}
	cards.Flags().Int64Var(&versionID, "version", 0, "version id")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <board-id> <name> <card-id>...",
			Short: "Release completed cards under a new version",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				cardIDs, err := parseIDList(args[2:])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					version, released, err := env.svc.ReleaseVersion(ctx, boardID, args[1], cardIDs, env.actor)
					if err != nil {
						return err
					}
					view := servercommon.ReleaseView{Version: servercommon.ToVersionView(version), Cards: servercommon.ToCardViews(released)}
					return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "released version #%d %s\n", view.Version.ID, view.Version.Name)
						printCards(w, view.Cards)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list <board-id>",
			Short: "List a board's released versions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					versions, err := env.svc.ListVersions(ctx, boardID)
					if err != nil {
						return err
					}
					views := servercommon.ToVersionViews(versions)
					return emit(cmd.OutOrStdout(), opts, views, func(w io.Writer) {
						for _, v := range views {
							_, _ = fmt.Fprintf(w, "#%d %s (%s)\n", v.ID, v.Name, v.ReleasedAt.Format("2006-01-02"))
						}
					})
				})
			},
		},
		cards,
		&cobra.Command{
			Use:   "archive <card-id>...",
			Short: "Archive cards without releasing them",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cardIDs, err := parseIDList(args)
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					archived, err := env.svc.ArchiveCards(ctx, cardIDs, env.actor)
					if err != nil {
						return err
					}
					views := servercommon.ToCardViews(archived)
					return emit(cmd.OutOrStdout(), opts, views, func(w io.Writer) { printCards(w, views) })
				})
			},
		},
	)
	return cmd
}

func parseIDList(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := parseIDArg("card id", r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func activityCmd(opts *cliOptions) *cobra.Command {
	var (
		style string
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "activity <card-id>",
		Short: "Show a card's activity feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseIDArg("card id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				activities, err := env.svc.ListActivities(ctx, cardID)
				if err != nil {
					return err
				}
				views := servercommon.ToActivityViews(activities)
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), views)
				}
				markdown := activityMarkdown(cardID, views)
				if raw {
					_, err := io.WriteString(cmd.OutOrStdout(), markdown)
					return err
				}
				rendered, err := renderMarkdown(markdown, style)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), rendered)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ascii)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the feed as markdown without rendering")

	var eventType string
	comment := &cobra.Command{
		Use:   "comment <card-id> <text>",
		Short: "Record a comment, or another activity type with --type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseIDArg("card id", args[0])
			if err != nil {
				return err
			}
			parsed := domain.EventCommentAdded
			if strings.TrimSpace(eventType) != "" {
				if parsed, err = domain.ParseEventType(eventType); err != nil {
					return err
				}
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				activity, err := env.svc.RecordActivity(ctx, cardID, parsed, args[1], env.actor)
				if err != nil {
					return err
				}
				view := servercommon.ToActivityView(activity)
				return emit(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, view.Message)
				})
			})
		},
	}
	comment.Flags().StringVar(&eventType, "type", "", "event type (default COMMENT_ADDED)")
	cmd.AddCommand(comment)
	return cmd
}

func memberCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage board members and their notification preferences",
	}

	var name string
	add := &cobra.Command{
		Use:   "add <board-id> <email>",
		Short: "Subscribe a user to a board's notifications",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseIDArg("board id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				if _, err := env.svc.GetBoard(ctx, boardID); err != nil {
					return err
				}
				member := domain.BoardMember{BoardID: boardID, Email: strings.TrimSpace(args[1]), Name: strings.TrimSpace(name)}
				if member.Email == "" {
					return fmt.Errorf("%w: member email is required", domain.ErrValidation)
				}
				if err := env.repo.UpsertBoardMember(ctx, member); err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, member, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "%s joined board #%d\n", member.Email, boardID)
				})
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <board-id>",
			Short: "List a board's members",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				boardID, err := parseIDArg("board id", args[0])
				if err != nil {
					return err
				}
				return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
					members, err := env.repo.ListBoardMembers(ctx, boardID)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, members, func(w io.Writer) {
						for _, m := range members {
							_, _ = fmt.Fprintf(w, "%s %s\n", m.Email, m.Name)
						}
					})
				})
			},
		},
	)
	return cmd
}

func notificationsCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications <email>",
		Short: "Show a user's stored notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				notes, err := env.repo.ListNotifications(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, notes, func(w io.Writer) {
					if len(notes) == 0 {
						_, _ = fmt.Fprintln(w, "no notifications")
						return
					}
					for _, n := range notes {
						_, _ = fmt.Fprintf(w, "%s card #%d %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.CardID, n.Message)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum notifications to show")
	return cmd
}

func serveCmd(opts *cliOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				cfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
					ServerName:    "cardflow",
					ServerVersion: version,
					DefaultActor:  env.actor,
				}
				env.logger.Info("command flow start", "command", "serve", "bind", cfg.HTTPBind)
				if err := serveCommandRunner(ctx, cfg, serveradapter.Dependencies{Service: env.svc, Logger: env.logger}); err != nil {
					env.logger.Error("command flow failed", "command", "serve", "err", err)
					return fmt.Errorf("run serve command: %w", err)
				}
				env.logger.Info("command flow complete", "command", "serve")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP bind address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
