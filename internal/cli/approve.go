package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	approveStrategy          string
	approvePreserveOriginals bool
)

var approveCmd = &cobra.Command{
	Use:   "approve <group-id>",
	Short: "Consolidate a pending duplicate group",
	Long: `Merge the members of a pending group into a consolidated record and mark
the group consolidated.

The original memories stay active by default; pass
--preserve-originals=false to mark them inactive once the merged record
is saved. Their content is kept either way, so lineage always resolves.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().StringVar(&approveStrategy, "strategy", "", "consolidation strategy (defaults to the group's suggestion)")
	approveCmd.Flags().BoolVar(&approvePreserveOriginals, "preserve-originals", true, "keep the source memories active after consolidation")
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	groupID := args[0]

	strategy, err := resolveStrategy(ctx, groupID, approveStrategy)
	if err != nil {
		return err
	}

	merged, err := newEngine().ApproveConsolidation(ctx, groupID, strategy)
	if err != nil {
		return err
	}

	fmt.Printf("Consolidated group %s into %s\n", groupID, merged.ID)
	fmt.Printf("  Strategy: %s\n", merged.StrategyUsed)
	fmt.Printf("  Quality:  %.2f\n", merged.QualityScore)
	fmt.Printf("  Lineage:  %s\n", strings.Join(merged.OriginalMemoryIDs, ", "))

	if !approvePreserveOriginals {
		if err := dbClient.MarkMemoriesInactive(ctx, merged.OriginalMemoryIDs); err != nil {
			return fmt.Errorf("mark originals inactive: %w", err)
		}
		fmt.Printf("  Marked %d original memories inactive\n", len(merged.OriginalMemoryIDs))
	}
	return nil
}
