package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bidflow/internal/consensus"
	"bidflow/internal/domain"
	"bidflow/internal/xlsxexport"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a multi-model consensus analysis over plan sheets",
	Long: `Analyze sends plan sheet images to every model in the configured roster,
merges their answers into a consensus result and prints it as JSON.

Images may be http(s) URLs, data URLs or local image files. Pages are numbered
in the order the images are given.

Examples:
  # Quantity takeoff over two sheets
  analyze --task takeoff --image a101.png --image a102.png

  # Quality review, also written as a workbook
  analyze --task quality --image https://plans.example.com/s1.png --xlsx review.xlsx`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("task", string(domain.TaskTakeoff), "analysis task: takeoff, quality or bid_analysis")
	f.StringArray("image", nil, "plan sheet image (URL or file path); repeat for more pages")
	f.Int("max-tokens", 0, "output token limit per model (0=model default)")
	f.Bool("accuracy", false, "ask models to prioritize accuracy over speed")
	f.String("xlsx", "", "also write the result as an Excel workbook to this path")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	task, _ := cmd.Flags().GetString("task")
	refs, _ := cmd.Flags().GetStringArray("image")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	accuracy, _ := cmd.Flags().GetBool("accuracy")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	if len(refs) == 0 {
		return fmt.Errorf("at least one --image is required")
	}
	images := make([]domain.PlanImage, 0, len(refs))
	for i, ref := range refs {
		url, err := imageURL(ref)
		if err != nil {
			return err
		}
		images = append(images, domain.PlanImage{URL: url, PageIndex: i})
	}

	members, err := consensus.MembersFromRoster(&cfg.Providers, cfg.Roster, 0)
	if err != nil {
		return err
	}
	engine, err := consensus.NewEngine(members, consensus.FromConfig(cfg.Consensus))
	if err != nil {
		return fmt.Errorf("build consensus engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.AnalyzeWithConsensus(ctx, images, domain.AnalysisOptions{
		TaskType:           domain.TaskType(task),
		MaxTokens:          maxTokens,
		PrioritizeAccuracy: accuracy,
		IncludeConsensus:   true,
	})
	if err != nil {
		return err
	}
	zap.L().Info("analysis finished",
		zap.String("task", task),
		zap.Int("items", len(result.Items)),
		zap.Int("issues", len(result.Issues)),
	)

	if xlsxPath != "" {
		if err := writeWorkbook(xlsxPath, result); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func writeWorkbook(path string, result *domain.ConsensusResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := xlsxexport.Write(f, result); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
