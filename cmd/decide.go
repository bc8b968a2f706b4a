package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
)

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Manually approve a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		reviewer, err := cmd.Flags().GetString("reviewer")
		if err != nil {
			return err
		}
		notes, err := cmd.Flags().GetString("notes")
		if err != nil {
			return err
		}

		record, err := svc.Approve(cmd.Context(), approvals.ApproveInput{
			RequestID: cmd.Flags().Arg(0),
			Reviewer:  reviewer,
			Notes:     notes,
		})
		if err != nil {
			return errs.Wrap(err, "approve request")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "request %s approved by %s (response %dmin)\n",
			record.RequestID, reviewer, *record.ResponseTimeMinutes)
		return err
	}),
}

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		reviewer, err := cmd.Flags().GetString("reviewer")
		if err != nil {
			return err
		}
		reason, err := cmd.Flags().GetString("reason")
		if err != nil {
			return err
		}

		record, err := svc.Reject(cmd.Context(), approvals.RejectInput{
			RequestID: cmd.Flags().Arg(0),
			Reviewer:  reviewer,
			Reason:    reason,
		})
		if err != nil {
			return errs.Wrap(err, "reject request")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "request %s rejected by %s\n", record.RequestID, reviewer)
		return err
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Cancel a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		actor, err := cmd.Flags().GetString("by")
		if err != nil {
			return err
		}
		reason, err := cmd.Flags().GetString("reason")
		if err != nil {
			return err
		}

		record, err := svc.Cancel(cmd.Context(), approvals.CancelInput{
			RequestID:   cmd.Flags().Arg(0),
			CancelledBy: actor,
			Reason:      reason,
		})
		if err != nil {
			return errs.Wrap(err, "cancel request")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "request %s cancelled\n", record.RequestID)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(cancelCmd)

	approveCmd.Flags().String("reviewer", "", "Reviewer id")
	approveCmd.Flags().String("notes", "", "Approval notes")
	_ = approveCmd.MarkFlagRequired("reviewer")

	rejectCmd.Flags().String("reviewer", "", "Reviewer id")
	rejectCmd.Flags().String("reason", "", "Rejection reason")
	_ = rejectCmd.MarkFlagRequired("reviewer")
	_ = rejectCmd.MarkFlagRequired("reason")

	cancelCmd.Flags().String("by", "", "Who cancels the request")
	cancelCmd.Flags().String("reason", "", "Cancellation reason")
	_ = cancelCmd.MarkFlagRequired("by")
}
