package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/model"
)

var runSheetName string

var runCmd = &cobra.Command{
	Use:   "run <sheet.xlsx>",
	Short: "Enrich a company list and write results back to the sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sheetName := runSheetName
		if sheetName == "" {
			sheetName = cfg.Sheet.DefaultSheetName
		}

		job, err := env.Scheduler.Submit(ctx, args[0], sheetName)
		if err != nil {
			return eris.Wrap(err, "submit job")
		}
		zap.L().Info("job submitted",
			zap.String("job_id", job.ID),
			zap.Int("companies", job.Total),
		)

		env.Scheduler.Wait()

		final, err := env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "read final job state")
		}
		zap.L().Info("job complete",
			zap.String("status", string(final.Status)),
			zap.Int("processed", final.Processed),
			zap.Int("companies_with_contacts", final.Found),
			zap.Int("people_found", final.PeopleFound),
			zap.Int("errors", final.Errors),
			zap.Duration("elapsed", elapsed(final)),
		)
		if final.Status == model.JobStatusError {
			return eris.Errorf("job failed: %s", final.ErrorMessage)
		}
		return nil
	},
}

func elapsed(j *model.Job) time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt).Round(time.Second)
}

func init() {
	runCmd.Flags().StringVar(&runSheetName, "sheet", "", "worksheet name (default from config)")
	rootCmd.AddCommand(runCmd)
}
