package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bidflow/internal/csvexport"
	"bidflow/internal/domain"
	"bidflow/internal/invoice"
	"bidflow/internal/provider"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured invoice data from document text",
	Long: `Extract sends the text of an invoice or bid document through the configured
invoice provider chain and prints the parsed invoice as JSON.

The input must already be text; scanned documents need OCR first.

Examples:
  # Extract an invoice and print JSON
  extract --file invoice.txt

  # Also write the line items as CSV
  extract --file invoice.txt --csv invoice.csv`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.String("file", "-", "text file to extract from (- for stdin)")
	f.String("name", "", "document file name recorded on the result (default: base name of --file)")
	f.String("csv", "", "also write the extraction as CSV to this path")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	name, _ := cmd.Flags().GetString("name")
	csvPath, _ := cmd.Flags().GetString("csv")

	text, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if name == "" && path != "-" {
		name = filepath.Base(path)
	}

	chain, err := provider.ChainFromRoster(&cfg.Providers, cfg.Roster, cfg.Invoice.Chain())
	if err != nil {
		return fmt.Errorf("build provider chain: %w", err)
	}
	extractor := invoice.NewExtractor(chain, "", invoice.OptionsFromConfig(cfg.Invoice)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := extractor.Extract(ctx, string(text), name)
	if err != nil {
		return err
	}
	zap.L().Info("invoice extracted",
		zap.String("file", name),
		zap.Int("line_items", len(data.LineItems)),
		zap.String("strategy", string(data.Strategy)),
	)

	if csvPath != "" {
		if err := writeInvoiceCSV(csvPath, data); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func writeInvoiceCSV(path string, data *domain.ParsedInvoiceData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := encodeInvoiceCSV(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func encodeInvoiceCSV(w io.Writer, data *domain.ParsedInvoiceData) error {
	if _, err := w.Write(csvexport.BOM); err != nil {
		return err
	}
	cw := csvexport.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteInvoice(data); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
