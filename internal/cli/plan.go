package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/examvm/internal/scheduler"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the VM creation schedule for the stored exams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			exams, err := st.ListExams(cmd.Context())
			if err != nil {
				return fmt.Errorf("list exams: %w", err)
			}

			out := cmd.OutOrStdout()
			schedule := scheduler.BuildSchedule(exams, a.cfg.ProvisioningDelay)
			if len(schedule) == 0 {
				fmt.Fprintln(out, "Nothing to schedule.")
				return nil
			}

			now := time.Now()
			fmt.Fprintf(out, "%-20s  %-30s  %-20s  %6s  %s\n", "CREATE AT", "EXAM", "EXAM START", "VMS", "STATUS")
			fmt.Fprintf(out, "%-20s  %-30s  %-20s  %6s  %s\n", "---------", "----", "----------", "---", "------")
			for _, entry := range schedule {
				status := "waiting"
				switch delay := entry.Delay(now); {
				case delay > a.cfg.ProvisioningDelay:
					status = "delayed " + delay.Round(time.Second).String()
				case entry.Due(now):
					status = "due"
				}
				fmt.Fprintf(out, "%-20s  %-30s  %-20s  %6d  %s\n",
					entry.Start.Local().Format(time.DateTime),
					entry.Exam.Name,
					entry.Exam.Start.Local().Format(time.DateTime),
					entry.Exam.Remaining(),
					status,
				)
			}
			return nil
		},
	}
}
