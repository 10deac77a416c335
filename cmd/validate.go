package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/navidrome/crateindex/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <band-name> <metadata-file.json>",
	Short: "Dry-run validate a band metadata document without writing it",
	Args:  cobra.ExactArgs(2),
	RunE:  runValidate,
}

func runValidate(c *cobra.Command, args []string) error {
	bandName, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	var band model.Band
	if err := json.Unmarshal(data, &band); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}

	ct, err := newContainer()
	if err != nil {
		return err
	}
	defer ct.Close()

	report, err := ct.ValidateBandMetadata(context.Background(), bandName, band)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Valid {
		os.Exit(1)
	}
	return nil
}
