package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an approval request",
	Long:  "Submits a request and evaluates auto-approval rules immediately; prints the resulting status.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		flags := cmd.Flags()

		input := approvals.SubmitInput{}
		var err error
		if input.RequestType, err = flags.GetString("type"); err != nil {
			return err
		}
		if input.Priority, err = flags.GetString("priority"); err != nil {
			return err
		}
		if input.Title, err = flags.GetString("title"); err != nil {
			return err
		}
		if input.Description, err = flags.GetString("description"); err != nil {
			return err
		}
		if input.RequestedBy, err = flags.GetString("requested-by"); err != nil {
			return err
		}
		if input.RequestedFor, err = flags.GetString("requested-for"); err != nil {
			return err
		}
		if input.SiteID, err = flags.GetString("site"); err != nil {
			return err
		}
		if input.PostID, err = flags.GetString("post"); err != nil {
			return err
		}
		if input.ShiftID, err = flags.GetString("shift"); err != nil {
			return err
		}
		if input.AssignmentID, err = flags.GetString("assignment"); err != nil {
			return err
		}
		if input.TicketID, err = flags.GetString("ticket"); err != nil {
			return err
		}
		if input.ValidationFailureReason, err = flags.GetString("failure-reason"); err != nil {
			return err
		}
		if input.ValidationFailureDetails, err = flags.GetString("failure-details"); err != nil {
			return err
		}
		if input.MetadataJSON, err = flags.GetString("metadata"); err != nil {
			return err
		}

		record, err := svc.Submit(cmd.Context(), input)
		if err != nil {
			return errs.Wrap(err, "submit request")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "request %s submitted: status=%s expires_at=%s\n",
			record.RequestID, record.Status, record.ExpiresAt.Format("2006-01-02 15:04:05")); err != nil {
			return errs.Wrap(err, "write submit output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("type", "", "Request type (e.g. LATE_CHECKIN_APPROVAL)")
	submitCmd.Flags().String("priority", "NORMAL", "Priority (URGENT/HIGH/NORMAL/LOW)")
	submitCmd.Flags().String("title", "", "Short title")
	submitCmd.Flags().String("description", "", "Longer description")
	submitCmd.Flags().String("requested-by", "", "Requester id")
	submitCmd.Flags().String("requested-for", "", "Target person id (defaults to requester)")
	submitCmd.Flags().String("site", "", "Related site id")
	submitCmd.Flags().String("post", "", "Related post id")
	submitCmd.Flags().String("shift", "", "Related shift id")
	submitCmd.Flags().String("assignment", "", "Related assignment id")
	submitCmd.Flags().String("ticket", "", "Originating ticket id")
	submitCmd.Flags().String("failure-reason", "", "Validation failure reason")
	submitCmd.Flags().String("failure-details", "", "Validation failure details")
	submitCmd.Flags().String("metadata", "", "Request metadata as a JSON object")
	_ = submitCmd.MarkFlagRequired("type")
	_ = submitCmd.MarkFlagRequired("requested-by")
}
