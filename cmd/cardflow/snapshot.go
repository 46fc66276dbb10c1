package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hylla/cardflow/internal/app"
	"github.com/spf13/cobra"
)

func exportCmd(opts *cliOptions) *cobra.Command {
	var (
		outPath         string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every board as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				return runExport(ctx, env.svc, outPath, includeArchived, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived cards")
	return cmd
}

func restoreCmd(opts *cliOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Recreate the boards of a JSON snapshot",
		Long:  "restore imports a snapshot written by export. Every row gets a new ID, so restoring twice makes two copies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			return withRuntime(cmd, opts, func(ctx context.Context, env *runtimeEnv) error {
				summary, err := runRestore(ctx, env.svc, inPath)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, summary, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "restored %d boards, %d cards, %d dependencies, %d checklist items, %d activities\n",
						summary.Boards, summary.Cards, summary.Dependencies, summary.ChecklistItems, summary.Activities)
				})
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// runExport encodes the snapshot to outPath or stdout.
func runExport(ctx context.Context, svc *app.Service, outPath string, includeArchived bool, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx, includeArchived)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func runRestore(ctx context.Context, svc *app.Service, inPath string) (app.SnapshotImportSummary, error) {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return app.SnapshotImportSummary{}, fmt.Errorf("read snapshot file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return app.SnapshotImportSummary{}, fmt.Errorf("decode snapshot json: %w", err)
	}
	summary, err := svc.ImportSnapshot(ctx, snap)
	if err != nil {
		return app.SnapshotImportSummary{}, fmt.Errorf("import snapshot: %w", err)
	}
	return summary, nil
}
