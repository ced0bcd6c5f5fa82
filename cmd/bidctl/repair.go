package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bidflow/internal/jsonrepair"
)

var errStillInvalid = errors.New("repaired text is still not valid JSON")

var repairCmd = &cobra.Command{
	Use:   "repair [file|-]",
	Short: "Repair malformed model JSON output",
	Long: `Repair reads text that was meant to be JSON, such as a model answer wrapped
in markdown fences or cut off mid-object, and prints the repaired document.

Examples:
  # Repair a saved model response
  repair response.txt

  # Repair from stdin and fail if the result is still invalid
  cat response.txt | repair --check`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		raw, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		check, _ := cmd.Flags().GetBool("check")
		return runRepair(string(raw), check, cmd.OutOrStdout())
	},
}

func init() {
	repairCmd.Flags().Bool("check", false, "exit with an error when the repaired text is not valid JSON")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(raw string, check bool, out io.Writer) error {
	repaired := jsonrepair.Repair(raw)
	if _, err := fmt.Fprintln(out, repaired); err != nil {
		return err
	}
	if check && !json.Valid([]byte(repaired)) {
		return errStillInvalid
	}
	return nil
}
