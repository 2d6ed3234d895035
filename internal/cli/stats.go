package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memdedup-go/internal/metrics"
)

const timeRounding = time.Millisecond

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Show row counts across the memory, score, group and consolidation tables.`,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := dbClient.GetStats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Database statistics:")
	fmt.Printf("  Memories:              %d (%d active)\n", stats.Memories, stats.ActiveMemories)
	fmt.Printf("  Pending groups:        %d\n", stats.PendingGroups)
	fmt.Printf("  Consolidated groups:   %d\n", stats.ConsolidatedGroups)
	fmt.Printf("  Dismissed groups:      %d\n", stats.DismissedGroups)
	fmt.Printf("  Consolidated memories: %d\n", stats.ConsolidatedMemories)
	fmt.Printf("  Persisted scores:      %d\n", stats.PersistedScores)
	return nil
}

// printMetrics prints a run's timing snapshot. Used by 'run --stats'.
func printMetrics(snap metrics.Snapshot) {
	fmt.Println("\nRun metrics:")
	fmt.Printf("  Pairs scored: %d (%d cache hits, %d abstentions, %d errors)\n",
		snap.Pairs.PairsScored, snap.Pairs.CacheHits, snap.Pairs.Abstentions, snap.Pairs.Errors)

	if len(snap.Operations) == 0 {
		return
	}

	ops := make([]string, 0, len(snap.Operations))
	for op := range snap.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	fmt.Println("  Timings:")
	for _, op := range ops {
		s := snap.Operations[op]
		fmt.Printf("    %-16s count=%d avg=%.1fms min=%dms max=%dms\n",
			op, s.Count, s.AvgTimeMs, s.MinTimeMs, s.MaxTimeMs)
	}
}
