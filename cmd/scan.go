package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	scanForceRescan bool
	scanFull        bool
	scanJSON        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the music root and update collection metadata",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanForceRescan, "force", false, "rewrite every band's metadata even if unchanged")
	scanCmd.Flags().BoolVar(&scanFull, "full", true, "run a full scan instead of an incremental one")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the scan result as JSON")
}

func runScan(c *cobra.Command, _ []string) error {
	ct, err := newContainer()
	if err != nil {
		return err
	}
	defer ct.Close()

	result, err := ct.ScanMusicFolders(context.Background(), scanForceRescan, scanFull)
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(c.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(c.OutOrStdout(), "scanned %s bands: %s changed, %s failed, %s skipped\n",
		humanize.Comma(int64(result.BandsScanned)),
		humanize.Comma(int64(result.BandsChanged)),
		humanize.Comma(int64(result.BandsFailed)),
		humanize.Comma(int64(result.BandsSkipped)),
	)
	for _, r := range result.Results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", r.BandName, r.Error)
		}
	}
	return nil
}
