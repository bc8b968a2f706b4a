package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
)

// sweepCmd is the hook for a periodic scheduler (cron, systemd timer).
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire pending requests past their deadline",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		count, err := svc.SweepExpired(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "sweep expired requests")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "expired %d request(s)\n", count)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
