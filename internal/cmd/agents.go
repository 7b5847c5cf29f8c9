package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the roster agents and check their availability",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().String("roster", "", "agent roster file (overrides config)")
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	path := cfg.Paths.Roster
	if flag, _ := cmd.Flags().GetString("roster"); flag != "" {
		path = flag
	}

	roster, err := config.LoadRoster(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, ag := range roster.Build() {
		avail, err := ag.CheckAvailability(ctx)
		status := "available"
		switch {
		case err != nil:
			status = fmt.Sprintf("check failed: %v", err)
		case !avail.Available:
			status = "unavailable"
		}

		profile := ag.Profile()
		role := profile.Primary
		if role == "" {
			role = "generalist"
		}
		fmt.Printf("%-16s %-12s %s\n", ag.Name(), role, status)
		for _, issue := range avail.Issues {
			fmt.Printf("  ! %s\n", issue)
		}
		for _, note := range avail.Notes {
			fmt.Printf("  - %s\n", note)
		}
	}
	return nil
}
