/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
	"opsgate/internal/usecase/reviewconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive review console for pending approval requests",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *approvals.Service) error {
		reviewer, _ := cmd.Flags().GetString("reviewer")
		refreshSeconds, _ := cmd.Flags().GetInt("refresh")

		model := reviewconsole.NewReviewModel(cmd.Context(), svc, reviewconsole.Options{
			Reviewer:        reviewer,
			RefreshInterval: time.Duration(refreshSeconds) * time.Second,
		})
		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run review console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("reviewer", "", "reviewer name recorded on decisions")
	consoleCmd.Flags().Int("refresh", 5, "queue refresh interval in seconds")
	_ = consoleCmd.MarkFlagRequired("reviewer")
}
