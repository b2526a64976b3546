package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/config"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot hybrid search against the memory store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "limit", "k", 10, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	configureEmbedder(eng, cfg, db, log)

	if _, err := eng.RebuildIndex(cmd.Context()); err != nil {
		return err
	}
	if eng.Embedder != nil {
		if _, err := eng.EmbedMissing(cmd.Context()); err != nil {
			log.Warn().Err(err).Msg("embed missing")
		}
	}

	query := strings.Join(args, " ")
	results, err := eng.Search(cmd.Context(), query, searchTopK)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. [%.4f] (%s) %s\n", i+1, r.FusedScore, r.Memory.MemoryType, truncate(r.Memory.Content, 100))
		fmt.Printf("    bm25_rank=%d semantic_rank=%d retention=%.3f\n", r.BM25Rank, r.SemanticRank, r.Memory.RetentionScore)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
