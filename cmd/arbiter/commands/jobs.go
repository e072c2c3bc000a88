package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/job"
)

// JobsCmd represents the jobs command - job record management
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control job records",
	Long: `Inspect and control job records.

These commands operate directly on the database, so a cancel issued
here is picked up by a running daemon at its next checkpoint.

Job management commands:
  arbiter jobs ls             # List job records
  arbiter jobs status <kind>  # Show the live job for a kind
  arbiter jobs cancel <kind>  # Cancel the live job for a kind

Triggering jobs requires the daemon; use the HTTP API:
  curl -X POST localhost:8710/api/jobs/scan/trigger`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists job records
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List job records",
	Long: `List job records, optionally filtered by status.

Status filters:
  running   - Jobs currently being processed
  paused    - Jobs that have been paused
  completed - Successfully completed jobs
  failed    - Jobs that failed with errors
  cancelled - Jobs that were cancelled

Examples:
  arbiter jobs ls                    # List recent jobs
  arbiter jobs ls --status running   # List only running jobs
  arbiter jobs ls --limit 50         # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(statusFilter, limit)
	},
}

// JobsStatusCmd shows the live job for a kind
var JobsStatusCmd = &cobra.Command{
	Use:   "status <kind>",
	Short: "Show the live job for a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(args[0])
	},
}

// JobsCancelCmd cancels the live job for a kind
var JobsCancelCmd = &cobra.Command{
	Use:   "cancel <kind>",
	Short: "Cancel the live job for a kind",
	Long: `Cancel the live (running or paused) job for a kind.

The record is stamped cancelled immediately; a daemon working the job
stops at its next checkpoint.

Example:
  arbiter jobs cancel scan`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

func init() {
	JobsLsCmd.Flags().String("status", "", "Filter by status (running, paused, completed, failed, cancelled)")
	JobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsStatusCmd)
	JobsCmd.AddCommand(JobsCancelCmd)
}

func runJobsLs(statusFilter string, limit int) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var status *job.Status
	if statusFilter != "" {
		if !job.IsValidStatus(statusFilter) {
			return errors.Newf("unknown status: %s", statusFilter)
		}
		s := job.Status(statusFilter)
		status = &s
	}

	records, err := job.NewStore(database).List(status, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(records) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-14s %-16s %-10s %-10s %s\n", "JOB ID", "KIND", "STATUS", "SOURCE", "STARTED")
	fmt.Printf("%-14s %-16s %-10s %-10s %s\n", "------", "----", "------", "------", "-------")
	for _, rec := range records {
		fmt.Printf("%-14s %-16s %-10s %-10s %s\n",
			truncate(rec.ID, 14),
			rec.Kind,
			rec.Status,
			rec.TriggerSource,
			rec.StartedAt.Local().Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(records))
	return nil
}

func runJobsStatus(kindArg string) error {
	kind := job.Kind(kindArg)
	if !kind.Valid() {
		return errors.Newf("unknown job kind: %s", kindArg)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := job.NewStore(database).FindActive(kind)
	if err != nil {
		return errors.Wrapf(err, "failed to look up %s", kind)
	}
	if rec == nil {
		fmt.Printf("No live %s job\n", kind)
		return nil
	}

	fmt.Printf("Job ID: %s\n", rec.ID)
	fmt.Printf("  Kind:    %s\n", rec.Kind)
	fmt.Printf("  Status:  %s\n", rec.Status)
	fmt.Printf("  Source:  %s\n", rec.TriggerSource)
	fmt.Printf("  Started: %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if rec.PausedAt != nil {
		fmt.Printf("  Paused:  %s\n", rec.PausedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsCancel(kindArg string) error {
	kind := job.Kind(kindArg)
	if !kind.Valid() {
		return errors.Newf("unknown job kind: %s", kindArg)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := job.NewStore(database)
	rec, err := store.FindActive(kind)
	if err != nil {
		return errors.Wrapf(err, "failed to look up %s", kind)
	}
	if rec == nil {
		return errors.Newf("no live %s job to cancel", kind)
	}

	if err := store.Transition(rec.ID, job.StatusCancelled); err != nil {
		return errors.Wrapf(err, "failed to cancel job %s", rec.ID)
	}

	fmt.Printf("Cancelled %s job %s\n", kind, rec.ID)
	return nil
}

// truncate shortens a string for table display
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
