// Package cmd implements the crateindex command-line entrypoint: a small
// cobra root with scan/serve/validate/doctor subcommands, generalized from
// the teacher's single manually-wired cmd/sonos_cast.go into a proper
// multi-command CLI (§6 "Transport & CLI operations").
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/navidrome/crateindex/conf"
	"github.com/navidrome/crateindex/core/container"
)

var rootCmd = &cobra.Command{
	Use:   "crateindex",
	Short: "Local music-collection indexer",
	Long: `crateindex scans a music folder tree, classifies albums by folder
naming convention, scores each band's organizational compliance, and
serves the result over a line-delimited JSON transport.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process per §6.6's exit-code
// contract: 0 success, 1 operational error, 2 invalid configuration,
// 3 music root unusable.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(scanCmd, serveCmd, validateCmd, doctorCmd)
}

// newContainer loads and validates Config then builds a Container,
// translating a config error into the documented exit code 2, and a music
// root that is missing or not a directory into exit code 3, rather than
// the generic 1 Execute uses for everything else.
func newContainer() (*container.Container, error) {
	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}
	if info, err := os.Stat(cfg.MusicRootPath); err != nil || !info.IsDir() {
		fmt.Fprintln(os.Stderr, "music root unusable:", cfg.MusicRootPath)
		os.Exit(3)
	}
	return container.New(cfg)
}
