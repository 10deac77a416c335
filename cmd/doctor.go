package cmd

import (
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/navidrome/crateindex/conf"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Print resolved configuration and a reproducible invocation",
	RunE:  runDoctor,
}

func runDoctor(c *cobra.Command, _ []string) error {
	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintln(c.OutOrStdout(), "configuration is invalid:", err)
		return err
	}

	fmt.Fprintf(c.OutOrStdout(), "music root:        %s\n", cfg.MusicRootPath)
	fmt.Fprintf(c.OutOrStdout(), "log level:          %s\n", cfg.LogLevel)
	fmt.Fprintf(c.OutOrStdout(), "max scan workers:   %d\n", cfg.MaxScanWorkers)
	fmt.Fprintf(c.OutOrStdout(), "lock timeout (s):   %d\n", cfg.LockTimeoutSeconds)
	fmt.Fprintf(c.OutOrStdout(), "monitor addr:       %s\n", cfg.MonitorAddr)
	fmt.Fprintf(c.OutOrStdout(), "watch mode:         %v\n", cfg.Watch)

	quoted := shellquote.Join(os.Args...)
	fmt.Fprintf(c.OutOrStdout(), "\nreproduce with:\n  %s\n", quoted)
	return nil
}
