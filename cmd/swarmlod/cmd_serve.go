package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/swarmlod/internal/checkpoint"
	"github.com/nvandessel/swarmlod/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation over MCP (stdio)",
		Long: `Start an MCP server exposing the simulation as tools over stdio.

The server starts with an empty population; clients seed agents with the
swarm_add_agents tool. Pass --resume to restore the latest checkpoint
first. The process runs until the client disconnects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resume, _ := cmd.Flags().GetBool("resume")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}

			eng, d, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			if resume {
				store, err := checkpoint.Open(dataDir)
				if err != nil {
					return fmt.Errorf("opening checkpoint store: %w", err)
				}
				ctx := cmd.Context()
				id, err := store.Latest(ctx)
				if err != nil {
					store.Close()
					return fmt.Errorf("no checkpoint to resume: %w", err)
				}
				rows, tick, err := store.Load(ctx, id)
				store.Close()
				if err != nil {
					return fmt.Errorf("loading checkpoint %d: %w", id, err)
				}
				if err := eng.Restore(rows, tick); err != nil {
					return fmt.Errorf("restoring checkpoint %d: %w", id, err)
				}
				fmt.Fprintf(os.Stderr, "resumed checkpoint %d at tick %d\n", id, tick)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "swarmlod",
				Version: version,
				DataDir: dataDir,
			}, eng)
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Bool("resume", false, "Restore the latest checkpoint before serving")

	return cmd
}
