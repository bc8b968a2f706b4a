package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approval requests",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		records, err := svc.ListPending(cmd.Context(), limit)
		if err != nil {
			return errs.Wrap(err, "list pending requests")
		}

		writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "REQUEST\tTYPE\tPRIORITY\tREQUESTED BY\tEXPIRES\tTITLE")
		for _, record := range records {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
				record.RequestID,
				record.RequestType,
				record.Priority,
				record.RequestedBy,
				record.ExpiresAt.Format("2006-01-02 15:04"),
				record.Title,
			)
		}
		return writer.Flush()
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a request with its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		detail, err := svc.GetRequest(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get request")
		}

		out := cmd.OutOrStdout()
		record := detail.Request
		fmt.Fprintf(out, "Request: %s\n", record.RequestID)
		fmt.Fprintf(out, "Type: %s  Priority: %s  Status: %s\n", record.RequestType, record.Priority, record.Status)
		fmt.Fprintf(out, "Title: %s\n", record.Title)
		fmt.Fprintf(out, "Requested by %s for %s at %s\n", record.RequestedBy, record.RequestedFor, record.RequestedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Expires at %s\n", record.ExpiresAt.Format("2006-01-02 15:04:05"))
		if record.ReviewedBy != nil {
			fmt.Fprintf(out, "Reviewed by %s\n", *record.ReviewedBy)
		}
		if record.ResponseTimeMinutes != nil {
			fmt.Fprintf(out, "Response time: %dmin\n", *record.ResponseTimeMinutes)
		}
		if record.AutoApproved && record.AutoApprovalRuleID != nil {
			fmt.Fprintf(out, "Auto-approved by rule %s\n", *record.AutoApprovalRuleID)
		}
		if record.RejectionReason != "" {
			fmt.Fprintf(out, "Rejection reason: %s\n", record.RejectionReason)
		}

		fmt.Fprintln(out, "\nAudit trail:")
		for _, action := range detail.Actions {
			actor := "system"
			if action.Actor != nil {
				actor = *action.Actor
			}
			line := fmt.Sprintf("- %s %s by %s", action.CreatedAt.Format("2006-01-02 15:04:05"), action.ActionType, actor)
			if strings.TrimSpace(action.Notes) != "" {
				line += ": " + action.Notes
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)

	listCmd.Flags().Int("limit", 0, "Maximum number of requests to list (0 = all)")
}
