package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/health"
)

// doctorOutput is the --json form of doctor
type doctorOutput struct {
	Status health.Status   `json:"status"`
	Checks []health.Report `json:"checks"`
}

func newDoctorCmd(cc *CommandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the backend, credential store and stored session",
		Long: `Run diagnostics without changing the session.

Checks include:
  api               the backend answers HTTP
  credential-store  the credential file is readable and intact
  session-token     a token is stored and has not expired

Exits with the network exit code when a check is unhealthy.

Examples:
  fisherman doctor
  fisherman doctor --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := health.NewManager().WithTimeout(cc.Config.Timeout)
			manager.AddChecker(health.NewAPIChecker(cc.Config.APIURL, nil))
			manager.AddChecker(health.NewStoreChecker(cc.Storage))
			manager.AddChecker(health.NewTokenChecker(cc.Storage))

			reports := manager.Check(cmd.Context())
			overall := health.OverallStatus(reports)

			for _, r := range reports {
				cc.Logger.Debug("health check", "name", r.Name, "status", r.Status.String(), "latency", r.Latency)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(doctorOutput{Status: overall, Checks: reports}); err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CHECK\tSTATUS\tLATENCY\tMESSAGE")
				for _, r := range reports {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Status, r.Latency.Round(time.Millisecond), r.Message)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nOverall: %s\n", overall)
			}

			if overall == health.StatusUnhealthy {
				return errors.New(errors.ErrCodeNetworkUnavailable, "one or more checks are unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")
	return cmd
}
