package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/worksla/worksla-web/jobs"
)

// Queue is the part of jobs.Client the commands use.
type Queue interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Stats(ctx context.Context) (jobs.QueueStats, error)
	Scheduled(size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// QueueFactory opens the job queue described by opts.
type QueueFactory func(opts *Options) Queue

func defaultQueue(opts *Options) Queue {
	return jobs.NewClient(asynq.RedisClientOpt{Addr: opts.RedisAddr, Password: opts.RedisPassword})
}

func newJobsCmd(opts *Options, open QueueFactory) *cobra.Command {
	if open == nil {
		open = defaultQueue
	}
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "trigger TASK",
		Short:     "Enqueue a task now",
		Long:      fmt.Sprintf("Enqueue one of: %s, %s.", jobs.TaskWorkpackagesSync, jobs.TaskWorkpackagesRefresh),
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskWorkpackagesSync, jobs.TaskWorkpackagesRefresh},
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := jobs.NewTask(args[0])
			if err != nil {
				return err
			}
			q := open(opts)
			defer func() { _ = q.Close() }()

			var options []asynq.Option
			if task.Type() == jobs.TaskWorkpackagesSync {
				options = append(options, jobs.SyncOptions()...)
			}
			info, err := q.Enqueue(cmd.Context(), task, options...)
			if errors.Is(err, jobs.ErrAlreadyQueued) {
				cmd.Printf("%s is already queued\n", task.Type())
				return nil
			}
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", task.Type(), err)
			}
			cmd.Printf("enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "queue",
		Short: "Show the default queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := open(opts)
			defer func() { _ = q.Close() }()
			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("inspect queue: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "queue\t%s\n", stats.Queue)
			fmt.Fprintf(tw, "pending\t%d\n", stats.Pending)
			fmt.Fprintf(tw, "active\t%d\n", stats.Active)
			fmt.Fprintf(tw, "scheduled\t%d\n", stats.Scheduled)
			fmt.Fprintf(tw, "retry\t%d\n", stats.Retry)
			fmt.Fprintf(tw, "archived\t%d\n", stats.Archived)
			fmt.Fprintf(tw, "processed today\t%d\n", stats.Processed)
			fmt.Fprintf(tw, "failed today\t%d\n", stats.Failed)
			fmt.Fprintf(tw, "paused\t%t\n", stats.Paused)
			return tw.Flush()
		},
	})

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := open(opts)
			defer func() { _ = q.Close() }()
			tasks, err := q.Scheduled(size)
			if err != nil {
				return fmt.Errorf("list scheduled: %w", err)
			}
			if len(tasks) == 0 {
				cmd.Println("no scheduled tasks")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNEXT RUN")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "number of tasks to list")
	cmd.AddCommand(scheduled)
	return cmd
}
