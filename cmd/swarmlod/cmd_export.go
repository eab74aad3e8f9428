package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/swarmlod/internal/checkpoint"
	"github.com/nvandessel/swarmlod/internal/export"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <output.arrow>",
		Short: "Export a checkpoint to an Arrow IPC file",
		Long: `Export a saved checkpoint's population snapshot as an Arrow IPC file.

The latest checkpoint is exported unless --checkpoint selects one. The
resulting file is readable by any Arrow-capable tool (pyarrow, polars,
duckdb).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("checkpoint")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outPath := args[0]

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(dataDir)
			if err != nil {
				return fmt.Errorf("opening checkpoint store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			if id == 0 {
				id, err = store.Latest(ctx)
				if err != nil {
					return fmt.Errorf("no checkpoint to export: %w", err)
				}
			}

			rows, tick, err := store.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("loading checkpoint %d: %w", id, err)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			if err := export.WriteSnapshot(f, rows, tick); err != nil {
				f.Close()
				os.Remove(outPath)
				return fmt.Errorf("writing snapshot: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing output file: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"checkpoint": id,
					"tick":       tick,
					"agents":     len(rows),
					"path":       outPath,
				})
			}
			fmt.Printf("Exported checkpoint %d (tick %d, %d agents) to %s\n", id, tick, len(rows), outPath)
			return nil
		},
	}

	cmd.Flags().Int64("checkpoint", 0, "Checkpoint ID to export (default: latest)")

	return cmd
}
