package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/report"
)

// Checker probes one dependency.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckerFactory lists the dependencies ping should probe.
type CheckerFactory func(opts *Options) []Checker

func defaultCheckers(opts *Options) []Checker {
	api := apiclient.New(apiclient.Options{BaseURL: opts.APIBaseURL, Timeout: 5 * time.Second, UserAgent: "workslactl"})
	checks := []Checker{{
		Name: "backend",
		Check: func(ctx context.Context) error {
			_, err := api.Health(ctx)
			return err
		},
	}}
	if opts.GotenbergURL != "" {
		checks = append(checks, Checker{Name: "gotenberg", Check: report.NewClient(opts.GotenbergURL).Ping})
	}
	return checks
}

var errUnreachable = errors.New("one or more dependencies are unreachable")

func newPingCmd(opts *Options, checkers CheckerFactory) *cobra.Command {
	if checkers == nil {
		checkers = defaultCheckers
	}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend and Gotenberg are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			failed := false
			for _, c := range checkers(opts) {
				start := time.Now()
				if err := c.Check(ctx); err != nil {
					failed = true
					cmd.Printf("%-10s FAIL  %v\n", c.Name, err)
					continue
				}
				cmd.Printf("%-10s ok    %s\n", c.Name, time.Since(start).Round(time.Millisecond))
			}
			if failed {
				return errUnreachable
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall timeout")
	return cmd
}
