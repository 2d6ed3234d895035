package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

var groupsStatus string

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List duplicate groups",
	Long: `List duplicate groups found by previous runs.

By default only pending groups are shown; use --status to see
consolidated or dismissed groups, or --status all for everything.`,
	RunE: runGroups,
}

func init() {
	groupsCmd.Flags().StringVarP(&groupsStatus, "status", "s", "pending", "filter by status (pending, consolidated, dismissed, all)")
}

func runGroups(cmd *cobra.Command, args []string) error {
	status, err := parseStatus(groupsStatus)
	if err != nil {
		return err
	}

	groups, err := newEngine().GetDuplicateGroups(cmd.Context(), status)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Println("No duplicate groups found.")
		return nil
	}

	fmt.Printf("Duplicate groups (%d):\n\n", len(groups))
	for _, g := range groups {
		fmt.Printf("%s  [%s]\n", g.ID, g.Status)
		fmt.Printf("  Members:    %d (primary %s)\n", g.Size(), g.Primary)
		fmt.Printf("  Confidence: %.2f\n", g.Confidence)
		fmt.Printf("  Methods:    %s\n", joinMethods(g.Methods))
		fmt.Printf("  Suggested:  %s\n", g.SuggestedStrategy)
		if len(g.CommonTags) > 0 {
			fmt.Printf("  Tags:       %s\n", strings.Join(g.CommonTags, ", "))
		}
		fmt.Println()
	}
	return nil
}

// parseStatus maps the --status flag to a store filter. "all" and ""
// disable the filter.
func parseStatus(s string) (models.GroupStatus, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return "", nil
	case string(models.GroupStatusPending):
		return models.GroupStatusPending, nil
	case string(models.GroupStatusConsolidated):
		return models.GroupStatusConsolidated, nil
	case string(models.GroupStatusDismissed):
		return models.GroupStatusDismissed, nil
	}
	return "", fmt.Errorf("unknown status %q (want pending, consolidated, dismissed or all)", s)
}

func joinMethods(methods []models.Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
