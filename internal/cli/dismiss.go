package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <group-id>",
	Short: "Dismiss a pending duplicate group",
	Long: `Mark a pending group as dismissed. Dismissal is terminal: the group is
never re-proposed and can no longer be consolidated.`,
	Args: cobra.ExactArgs(1),
	RunE: runDismiss,
}

func runDismiss(cmd *cobra.Command, args []string) error {
	groupID := args[0]
	if err := newEngine().DismissGroup(cmd.Context(), groupID); err != nil {
		return err
	}
	fmt.Printf("Dismissed group %s\n", groupID)
	return nil
}
