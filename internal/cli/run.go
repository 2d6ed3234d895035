package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/memdedup-go/internal/config"
	"github.com/raphaelgruber/memdedup-go/internal/engine"
	"github.com/raphaelgruber/memdedup-go/internal/llm"
)

var (
	runConfigPath string
	runCandidates []string
	runTags       []string
	runWarmStart  bool
	runEmbed      bool
	runShowStats  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a deduplication batch",
	Long: `Run detection over the active memories and store the resulting duplicate
groups as pending candidates.

A full run scores every pair; with --candidates only pairs touching the
given memory ids are scored, which is how incremental runs stay cheap.

Examples:
  memdedup run
  memdedup run --config run.yaml --warm-start
  memdedup run --candidates mem1,mem2 --embed-missing
  memdedup run --tags work`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "YAML run config (defaults used when omitted)")
	runCmd.Flags().StringSliceVar(&runCandidates, "candidates", nil, "restrict detection to pairs touching these memory ids")
	runCmd.Flags().StringSliceVar(&runTags, "tags", nil, "only consider memories carrying one of these tags")
	runCmd.Flags().BoolVar(&runWarmStart, "warm-start", false, "seed the score cache from persisted scores and persist it afterwards")
	runCmd.Flags().BoolVar(&runEmbed, "embed-missing", false, "attach embeddings to memories without one before detection")
	runCmd.Flags().BoolVar(&runShowStats, "stats", false, "print timing metrics after the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runCfg, err := config.LoadRunConfig(runConfigPath)
	if err != nil {
		return err
	}

	if runEmbed {
		embedder, err := llm.NewEmbedder(cfg)
		if err != nil {
			return fmt.Errorf("init embedder: %w", err)
		}
		embedded, err := llm.BackfillEmbeddings(ctx, dbClient, embedder)
		if err != nil {
			return fmt.Errorf("embed missing: %w", err)
		}
		fmt.Printf("Embedded %d memories\n", embedded)
	}

	eng := newEngine()
	opts := engine.RunOptions{
		Config:       runCfg,
		CandidateIDs: runCandidates,
		Tags:         runTags,
		WarmStart:    runWarmStart,
	}

	var result *engine.RunResult
	if term.IsTerminal(int(os.Stdout.Fd())) {
		result, err = runWithProgress(ctx, eng, opts)
	} else {
		result, err = eng.RunDeduplication(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("deduplication run: %w", err)
	}

	printRunResult(result)

	if runShowStats {
		printMetrics(eng.Metrics().Snapshot())
	}
	return nil
}

func printRunResult(result *engine.RunResult) {
	fmt.Printf("\nScanned %d memories, %d pairs (%d cache hits) in %s\n",
		result.MemoriesScanned, result.PairsConsidered, result.CacheHits, result.Duration.Round(timeRounding))
	fmt.Printf("Eligible edges: %d\n", result.EligibleEdges)

	if len(result.Groups) == 0 {
		fmt.Println("No duplicate groups found.")
	} else {
		fmt.Printf("\nDuplicate groups (%d, pending review):\n", len(result.Groups))
		for _, g := range result.Groups {
			fmt.Printf("  %s  %d members  confidence %.2f  suggested %s\n",
				g.ID, g.Size(), g.Confidence, g.SuggestedStrategy)
		}
		fmt.Println("\nReview with 'memdedup preview <group-id>' and apply with 'memdedup approve <group-id>'.")
	}

	for _, r := range result.Rejections {
		if r.GroupID == "" {
			fmt.Printf("Batch rejected: %s (%s)\n", r.Code, r.Detail)
		} else {
			fmt.Printf("Group %s rejected: %s (%s)\n", r.GroupID, r.Code, r.Detail)
		}
	}
	if len(result.PairErrors) > 0 {
		fmt.Printf("\nDetector errors (%d):\n", len(result.PairErrors))
		for _, e := range result.PairErrors {
			fmt.Printf("  • %s\n", e)
		}
	}
}
