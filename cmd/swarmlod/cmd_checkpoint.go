package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/swarmlod/internal/checkpoint"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage saved checkpoints",
	}
	cmd.AddCommand(newCheckpointListCmd(), newCheckpointDeleteCmd())
	return cmd
}

func newCheckpointListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(dataDir)
			if err != nil {
				return fmt.Errorf("opening checkpoint store: %w", err)
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing checkpoints: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"checkpoints": list,
					"count":       len(list),
				})
			}

			if len(list) == 0 {
				fmt.Println("No checkpoints saved yet.")
				return nil
			}
			fmt.Printf("Saved checkpoints (%d):\n\n", len(list))
			for _, info := range list {
				label := info.Label
				if label == "" {
					label = "-"
				}
				fmt.Printf("%4d  tick %-8d %7d agents  %-12s %s\n",
					info.ID, info.Tick, info.Agents, label,
					info.CreatedAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newCheckpointDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a checkpoint and its agent rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid checkpoint id: %s", args[0])
			}

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(dataDir)
			if err != nil {
				return fmt.Errorf("opening checkpoint store: %w", err)
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"status": "deleted",
					"id":     id,
				})
			}
			fmt.Printf("Deleted checkpoint %d.\n", id)
			return nil
		},
	}
}
