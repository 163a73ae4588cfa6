// Command cxxtract extracts canonical entity records from C++ sources and
// emits them as JSONL for downstream ingestion.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliyayaqiqi/cxxtract/cpp"
	"github.com/liliyayaqiqi/cxxtract/entity"
	"github.com/liliyayaqiqi/cxxtract/walker"
)

var (
	repoName            string
	repoRoot            string
	outputPath          string
	cacheFile           string
	workers             int
	failFast            bool
	declarationPolicy   string
	normalizeDocstrings bool
	debugLogging        bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cxxtract <path>",
		Short: "Structural C++ entity extraction for code indexing",
		Long: "cxxtract parses a C++ file or directory tree and emits one JSON record " +
			"per extracted class, struct or function, keyed by a deterministic Global URI.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository name baked into every record (required)")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Root for repository-relative paths (defaults per input)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write JSONL here instead of stdout")
	cmd.Flags().StringVar(&cacheFile, "cache", "", "Extraction cache file (.gz for gzip)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count for directory extraction (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort the run on the first per-file failure")
	cmd.Flags().StringVar(&declarationPolicy, "declarations", cpp.DECLARATIONS_LINKAGE_ONLY.String(),
		"Body-less declaration policy: linkage-only, none or all")
	cmd.Flags().BoolVar(&normalizeDocstrings, "normalize-docstrings", false,
		"Strip comment delimiters from docstrings")
	cmd.Flags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")

	cobra.CheckErr(cmd.MarkFlagRequired("repo"))

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	options := walker.DefaultOptions()
	options.RepoRoot = repoRoot
	options.ContinueOnError = !failFast
	options.Workers = workers
	options.CacheFile = cacheFile
	options.Extraction.DeclarationPolicy = cpp.DeclarationPolicyValue(declarationPolicy)
	options.Extraction.NormalizeDocstrings = normalizeDocstrings

	w, err := walker.New(options, logger)
	if err != nil {
		return err
	}

	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	var entities []entity.ExtractedEntity
	var stats *entity.ExtractionStats

	if info.IsDir() {
		entities, stats, err = w.ExtractDirectory(context.Background(), target, repoName)
	} else {
		entities, err = w.ExtractFile(target, repoName)
	}
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	if err := walker.WriteJSONL(out, entities); err != nil {
		return err
	}

	if stats != nil {
		summary, err := json.Marshal(stats.Snapshot())
		if err != nil {
			return fmt.Errorf("encoding run summary: %w", err)
		}
		fmt.Fprintln(os.Stderr, string(summary))
	}

	return nil
}

func buildLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if debugLogging {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger, nil
}

func openOutput() (io.Writer, func(), error) {
	if outputPath == "" {
		return os.Stdout, func() {}, nil
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s for writing: %w", outputPath, err)
	}

	return file, func() { file.Close() }, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
