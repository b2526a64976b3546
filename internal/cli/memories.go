package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/store"
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Manage stored memories",
}

var memoriesAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a new memory (type assigned by content heuristics)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *store.DB) error {
			content := strings.Join(args, " ")
			m := &store.MemoryRecord{
				Content:    content,
				MemoryType: engine.ClassifyMemoryType(content),
			}
			if err := db.CreateMemory(m); err != nil {
				return err
			}
			fmt.Printf("stored %s [%s]\n", m.ID, m.MemoryType)
			return nil
		})
	},
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories by retention score",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *store.DB) error {
			memories, err := db.ListMemories()
			if err != nil {
				return err
			}
			for _, m := range memories {
				pin := " "
				if m.IsPinned {
					pin = "*"
				}
				fmt.Printf("%s %s [%-10s] %.3f  %s\n", pin, m.ID, m.MemoryType, m.RetentionScore, truncate(m.Content, 80))
			}
			fmt.Printf("%d memories\n", len(memories))
			return nil
		})
	},
}

var memoriesPinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Exempt a memory from decay and pruning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *store.DB) error {
			return db.SetPinned(args[0], true)
		})
	},
}

var memoriesUnpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Restore normal decay behavior for a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *store.DB) error {
			return db.SetPinned(args[0], false)
		})
	},
}

func init() {
	memoriesCmd.AddCommand(memoriesAddCmd)
	memoriesCmd.AddCommand(memoriesListCmd)
	memoriesCmd.AddCommand(memoriesPinCmd)
	memoriesCmd.AddCommand(memoriesUnpinCmd)
}

// withStore opens the configured database, runs fn, and closes it.
func withStore(fn func(db *store.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
