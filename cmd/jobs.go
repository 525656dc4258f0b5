package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/store"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List enrichment jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Store.ListJobs(cmd.Context(), store.JobFilter{
			Status: model.JobStatus(jobsStatus),
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSHEET\tPROGRESS\tFOUND\tPEOPLE\tERRORS\tETA")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\n",
				j.ID, j.Status, j.SheetPath, j.Processed, j.Total,
				j.Found, j.PeopleFound, j.Errors, j.ETA)
		}
		return w.Flush()
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Scheduler.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("cancellation requested:", args[0])
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}
