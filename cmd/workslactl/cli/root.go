// Package cli implements the workslactl operator commands.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options are the connection settings shared by every command.
type Options struct {
	RedisAddr     string
	RedisPassword string
	APIBaseURL    string
	GotenbergURL  string
}

// NewRootCmd builds the workslactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}
	root := &cobra.Command{
		Use:           "workslactl",
		Short:         "Operate the WorkSLA dashboard",
		Long:          "workslactl triggers background jobs, inspects the job queue and checks that the backend and Gotenberg are reachable.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	_ = godotenv.Load()

	flags := root.PersistentFlags()
	flags.StringVar(&opts.RedisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address of the job queue")
	flags.StringVar(&opts.RedisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	flags.StringVar(&opts.APIBaseURL, "api", envOr("API_BASE_URL", "http://127.0.0.1:8000/api"), "WorkSLA backend base URL")
	flags.StringVar(&opts.GotenbergURL, "gotenberg", os.Getenv("GOTENBERG_URL"), "Gotenberg base URL, empty to skip")

	root.AddCommand(newJobsCmd(opts, nil))
	root.AddCommand(newPingCmd(opts, nil))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
