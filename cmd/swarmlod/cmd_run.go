package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/checkpoint"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation for a fixed number of ticks",
		Long: `Run the simulation headless for a fixed number of ticks.

A fresh population is seeded unless --resume restores the latest
checkpoint. Interrupting with Ctrl-C stops cleanly after the current tick.

Example:
  swarmlod run --agents 100000 --ticks 500 --triggers 0x1 --save-every 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ticks, _ := cmd.Flags().GetInt("ticks")
			agents, _ := cmd.Flags().GetInt("agents")
			wakeMask, _ := cmd.Flags().GetUint64("wake-mask")
			triggers, _ := cmd.Flags().GetUint64("triggers")
			saveEvery, _ := cmd.Flags().GetInt("save-every")
			keep, _ := cmd.Flags().GetInt("keep")
			resume, _ := cmd.Flags().GetBool("resume")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if ticks <= 0 {
				return fmt.Errorf("--ticks must be positive, got %d", ticks)
			}

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

			var store *checkpoint.Store
			if saveEvery > 0 || resume {
				store, err = checkpoint.Open(dataDir)
				if err != nil {
					return fmt.Errorf("opening checkpoint store: %w", err)
				}
				defer store.Close()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				<-sigChan
				cancel()
			}()

			if resume {
				id, err := store.Latest(ctx)
				if err != nil {
					return fmt.Errorf("no checkpoint to resume: %w", err)
				}
				rows, tick, err := store.Load(ctx, id)
				if err != nil {
					return fmt.Errorf("loading checkpoint %d: %w", id, err)
				}
				if err := eng.Restore(rows, tick); err != nil {
					return fmt.Errorf("restoring checkpoint %d: %w", id, err)
				}
				fmt.Fprintf(os.Stderr, "resumed checkpoint %d at tick %d with %d agents\n",
					id, tick, len(rows))
			} else {
				if err := seedWorld(eng, agents, wakeMask, cfg.World.Width, cfg.World.Height); err != nil {
					return err
				}
			}
			eng.SetGlobalTriggers(agent.TriggerMask(triggers))

			tickLog := logging.NewTickLogger(dataDir, cfg.Logging.Level)
			defer tickLog.Close()

			var last engine.Metrics
			ran := 0
			for i := 0; i < ticks; i++ {
				m, err := eng.Tick(ctx)
				if err != nil {
					if ctx.Err() != nil {
						fmt.Fprintf(os.Stderr, "interrupted after %d ticks\n", ran)
						break
					}
					return fmt.Errorf("tick %d failed: %w", i+1, err)
				}
				last = m
				ran++

				tickLog.Log(map[string]any{
					"tick":       m.Tick,
					"total":      m.Total,
					"dormant":    m.Populations[agent.TierDormant],
					"simplified": m.Populations[agent.TierSimplified],
					"full":       m.Populations[agent.TierFull],
					"heavy":      m.Populations[agent.TierHeavy],
					"signal":     m.SignalTotal,
					"promoted":   m.Promoted,
					"demoted":    m.Demoted,
					"blocked":    m.Blocked,
				})

				if saveEvery > 0 && ran%saveEvery == 0 {
					if err := saveCheckpoint(ctx, store, eng, ""); err != nil {
						return err
					}
					if keep > 0 {
						if _, err := store.Prune(ctx, &checkpoint.KeepCount{MaxCount: keep}); err != nil {
							return fmt.Errorf("pruning checkpoints: %w", err)
						}
					}
				}
			}

			if store != nil && ran > 0 {
				if err := saveCheckpoint(ctx, store, eng, "final"); err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(last)
			}
			printMetrics(os.Stdout, last, ran)
			return nil
		},
	}

	cmd.Flags().Int("ticks", 100, "Number of ticks to run")
	cmd.Flags().Int("agents", 10000, "Number of dormant agents to seed")
	cmd.Flags().Uint64("wake-mask", 1, "Wake trigger mask assigned to seeded agents")
	cmd.Flags().Uint64("triggers", 0, "Global trigger mask active during the run")
	cmd.Flags().Int("save-every", 0, "Save a checkpoint every N ticks (0 = final only when resuming or saving)")
	cmd.Flags().Int("keep", 10, "Periodic checkpoints to retain when pruning (0 = keep all)")
	cmd.Flags().Bool("resume", false, "Resume from the latest checkpoint instead of seeding")

	return cmd
}

// seedWorld inserts the initial dormant population and two reward sites. The
// predicted state is staggered so trigger pulses wake a graded share of the
// population rather than all of it.
func seedWorld(eng *engine.Engine, agents int, wakeMask uint64, width, height int) error {
	if agents <= 0 {
		return fmt.Errorf("--agents must be positive, got %d", agents)
	}

	seeds := make([]agent.Seed, agents)
	for i := range seeds {
		seeds[i] = agent.Seed{
			ID:             agent.ID(i),
			PredictedState: float64(i%10) / 10.0,
			WakeMask:       agent.TriggerMask(wakeMask),
		}
	}
	if _, err := eng.AddDormantAgents(seeds); err != nil {
		return fmt.Errorf("seeding agents: %w", err)
	}

	sites := []engine.Site{
		{Name: "grove", Kind: engine.SiteHarvest, X: width / 4, Y: height / 4, Yield: 1.0},
		{Name: "market", Kind: engine.SiteTrade, X: 3 * width / 4, Y: 3 * height / 4, Yield: 0.5},
	}
	if err := eng.RegisterSites(sites); err != nil {
		return fmt.Errorf("registering sites: %w", err)
	}
	return nil
}

func saveCheckpoint(ctx context.Context, store *checkpoint.Store, eng *engine.Engine, label string) error {
	rows, tick := eng.Snapshot()
	id, err := store.Save(ctx, rows, tick, label, eng.SampleMetrics())
	if err != nil {
		return fmt.Errorf("saving checkpoint at tick %d: %w", tick, err)
	}
	fmt.Fprintf(os.Stderr, "saved checkpoint %d at tick %d\n", id, tick)
	return nil
}

func printMetrics(w *os.File, m engine.Metrics, ran int) {
	fmt.Fprintf(w, "Ran %d ticks.\n\n", ran)
	fmt.Fprintf(w, "Population (%d total):\n", m.Total)
	for t := 0; t < agent.TierCount; t++ {
		fmt.Fprintf(w, "  %-10s %d\n", agent.Tier(t).String()+":", m.Populations[t])
	}
	fmt.Fprintf(w, "\nMean health:    %.3f\n", m.MeanHealth)
	fmt.Fprintf(w, "Mean activity:  %.3f\n", m.MeanActivity)
	fmt.Fprintf(w, "Mean surprise:  %.3f\n", m.MeanSurprise)
	fmt.Fprintf(w, "Signal mass:    %.3f\n", m.SignalTotal)
	fmt.Fprintf(w, "Roles:          %d brokers, %d hoarders, %d neutral\n", m.Brokers, m.Hoarders, m.Neutrals)
	fmt.Fprintf(w, "Tier moves:     %d promoted, %d demoted\n", m.Promoted, m.Demoted)
	if m.Blocked > 0 {
		fmt.Fprintf(w, "Shield blocks:  %d\n", m.Blocked)
	}
	if m.DispatchTimeouts > 0 {
		fmt.Fprintf(w, "Dispatch timeouts: %d\n", m.DispatchTimeouts)
	}
}
