package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

var previewStrategy string

var previewCmd = &cobra.Command{
	Use:   "preview <group-id>",
	Short: "Preview the consolidation of a pending group",
	Long: `Show the merged record an approval would produce, without writing
anything. The preview uses the exact merge logic of approve, so what
you see is what you get.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewStrategy, "strategy", "", "consolidation strategy (defaults to the group's suggestion)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	groupID := args[0]

	strategy, err := resolveStrategy(ctx, groupID, previewStrategy)
	if err != nil {
		return err
	}

	preview, err := newEngine().PreviewConsolidation(ctx, groupID, strategy)
	if err != nil {
		return err
	}

	fmt.Printf("Preview for group %s (strategy %s, quality %.2f):\n\n", preview.GroupID, preview.Strategy, preview.QualityScore)
	fmt.Printf("Title: %s\n", preview.Title)
	if len(preview.Tags) > 0 {
		fmt.Printf("Tags:  %s\n", strings.Join(preview.Tags, ", "))
	}
	fmt.Printf("Replaces: %s\n\n", strings.Join(preview.OriginalMemoryIDs, ", "))
	fmt.Println(preview.Content)
	return nil
}

// resolveStrategy turns the --strategy flag into a concrete strategy,
// falling back to the group's suggestion when the flag is empty.
func resolveStrategy(ctx context.Context, groupID, flag string) (models.ConsolidationStrategy, error) {
	if flag != "" {
		strategy := models.ConsolidationStrategy(flag)
		if !strategy.Valid() {
			return "", fmt.Errorf("unknown strategy %q (want merge_similar, chronological, topic_based, entity_focused or hierarchical)", flag)
		}
		return strategy, nil
	}

	group, err := dbClient.GetDuplicateGroup(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("load group %s: %w", groupID, err)
	}
	return group.SuggestedStrategy, nil
}
