package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/config"
)

var pruneThreshold float64

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Recompute retention scores and delete low-retention memories",
	Long:  "Runs a full retention pass, then permanently deletes all non-pinned memories whose retention score falls below the threshold. There is no undo.",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().Float64Var(&pruneThreshold, "threshold", -1, "retention threshold (default: configured prune_threshold)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	defer eng.Stop()

	updated, err := eng.UpdateAllRetentionScores(cmd.Context())
	if err != nil {
		return fmt.Errorf("retention pass failed after %d updates: %w", updated, err)
	}

	threshold := pruneThreshold
	if threshold < 0 {
		threshold = eng.DecayConfig().PruneThreshold
	}

	removed, err := eng.PruneLowRetentionMemories(cmd.Context(), threshold)
	if err != nil {
		return err
	}

	fmt.Printf("updated %d retention scores, pruned %d memories below %.3f\n", updated, removed, threshold)
	return nil
}
