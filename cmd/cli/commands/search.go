package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/internal/dataset"
	"github.com/inferloop/anonsearch/internal/export"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/search"
	"github.com/inferloop/anonsearch/internal/storage"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

type SearchOptions struct {
	InputFile        string
	OutputFile       string
	Format           string
	ReportFile       string
	MaxK             int
	AllowedDrop      int
	LBound           string
	Workers          int
	QuasiIdentifiers []string
	SensitiveField   string
	Store            bool
	ShowCandidates   bool
	Strict           bool
	Save             bool
}

func NewSearchCmd(load RuntimeLoader) *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the (k, l) pair with the best privacy score",
		Long: `Evaluate every (k, l) pair with 1 <= k < max-k and 1 <= l < max-k (or the
number of distinct sensitive values + 1 with --l-bound categories), reject pairs
that drop more than --allowed-drop records, and report the pair with the highest
mean group size * mean group diversity. Ties keep the smallest k, then l.`,
		Example: `  # Search with the configured defaults and print the candidate table
  anonsearch-cli search --input survey.csv --show-candidates

  # Write the released table and the full report
  anonsearch-cli search -i survey.csv --max-k 8 --allowed-drop 3 -o released.csv --report report.json

  # Save the released table under output.directory, gzipped when output.compress is set
  anonsearch-cli search -i survey.csv --save

  # Persist the report in the configured store (redis or s3)
  anonsearch-cli search -i survey.csv --store`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, load, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input survey CSV (- for stdin, required)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "", "Write the released table here (- for stdout)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Released table format (csv, json; default from config)")
	cmd.Flags().StringVar(&opts.ReportFile, "report", "", "Write the full search report as JSON")
	cmd.Flags().IntVar(&opts.MaxK, "max-k", 0, "Exclusive upper bound for k (default from config)")
	cmd.Flags().IntVar(&opts.AllowedDrop, "allowed-drop", 0, "Maximum number of dropped records (default from config)")
	cmd.Flags().StringVar(&opts.LBound, "l-bound", "", "Bound for l: max_k or categories (default from config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent candidate evaluations (default from config)")
	cmd.Flags().StringSliceVar(&opts.QuasiIdentifiers, "qi", nil, "Quasi-identifier columns in sort precedence")
	cmd.Flags().StringVar(&opts.SensitiveField, "sensitive", "", "Sensitive column")
	cmd.Flags().BoolVar(&opts.Store, "store", false, "Save the report to the configured store")
	cmd.Flags().BoolVar(&opts.ShowCandidates, "show-candidates", false, "Print every evaluated candidate")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Reject records outside the survey value ranges")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Write the released table to the configured output directory")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runSearch(cmd *cobra.Command, load RuntimeLoader, opts *SearchOptions) error {
	rt, err := load()
	if err != nil {
		return err
	}

	records, err := readRecords(cmd, opts.InputFile)
	if err != nil {
		return err
	}
	if opts.Strict {
		if err := dataset.ValidateRecords(records); err != nil {
			return err
		}
	}

	cfg := searchConfig(cmd, rt, opts)
	searcher := search.NewSearcher(privacy.NewEngine(rt.Logger), nil, rt.Logger)

	report, err := searcher.Search(cmd.Context(), records, cfg)
	if err != nil {
		return err
	}

	out := summaryWriter(cmd, opts.OutputFile)
	printSearchSummary(out, report)
	if opts.ShowCandidates {
		fmt.Fprintln(out)
		printCandidates(out, report.Candidates)
	}

	exporter, err := newExporter(rt)
	if err != nil {
		return err
	}

	if opts.OutputFile != "" {
		if err := writeDataset(cmd, exporter, report.Dataset, opts.OutputFile, outputFormat(opts.Format, rt), rt.Config.Output.Pretty); err != nil {
			return err
		}
	}

	if opts.Save {
		result, err := exporter.ExportToFile(cmd.Context(), report.Dataset, export.ExportFormat(outputFormat(opts.Format, rt)),
			fmt.Sprintf("anonymized_k%d_l%d", report.BestK, report.BestL), export.ExportOptions{
				IncludeHeaders: true,
				JSONOptions:    export.JSONOptions{Pretty: rt.Config.Output.Pretty},
			})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved released table to %s\n", result.Path)
	}

	if opts.ReportFile != "" {
		writer, closeFn, err := openOutput(cmd, opts.ReportFile)
		if err != nil {
			return err
		}
		err = exporter.ExportReport(cmd.Context(), report, writer, export.ExportOptions{
			JSONOptions: export.JSONOptions{Pretty: true},
		})
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if opts.Store {
		if err := storeReport(cmd.Context(), rt, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Stored report %s in %s\n", report.ID, rt.Config.Storage.Type)
	}

	return nil
}

func searchConfig(cmd *cobra.Command, rt *Runtime, opts *SearchOptions) search.Config {
	cfg := rt.Config.Search
	flags := cmd.Flags()

	if flags.Changed("max-k") {
		cfg.MaxK = opts.MaxK
	}
	if flags.Changed("allowed-drop") {
		cfg.AllowedDrop = opts.AllowedDrop
	}
	if flags.Changed("l-bound") {
		cfg.LBound = opts.LBound
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("qi") {
		cfg.QuasiIdentifiers = opts.QuasiIdentifiers
	}
	if flags.Changed("sensitive") {
		cfg.SensitiveField = opts.SensitiveField
	}
	return cfg
}

func printSearchSummary(w io.Writer, report *models.SearchReport) {
	fmt.Fprintf(w, "Search ID: %s\n", report.ID)
	fmt.Fprintf(w, "Best k: %d\n", report.BestK)
	fmt.Fprintf(w, "Best l: %d\n", report.BestL)
	fmt.Fprintf(w, "Best score: %.4f\n", report.BestScore)
	fmt.Fprintf(w, "Released: %d of %d records (%d dropped)\n",
		report.Dataset.Len(), report.InputSize, report.Dataset.Dropped())
	fmt.Fprintf(w, "Evaluated: %d candidates in %s\n", len(report.Candidates), report.Duration)

	for _, flag := range report.Flags {
		if flag == search.FlagLowDiversity {
			fmt.Fprintln(w, "Warning: the winning candidate has l = 1 and enforces no diversity")
		}
	}
}

func printCandidates(w io.Writer, candidates []models.Candidate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "K\tL\tDROPPED\tACCEPTED\tGROUPS\tPRIVACY\tSCORE")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%t\t%d\t%.4f\t%.4f\n",
			c.K, c.L, c.Dropped, c.Accepted, c.Groups, c.PrivacyScore, c.CombinedScore)
	}
	tw.Flush()
}

func writeDataset(cmd *cobra.Command, exporter *export.ExportEngine, data *models.AnonymizedDataset, path, format string, pretty bool) error {
	writer, closeFn, err := openOutput(cmd, path)
	if err != nil {
		return err
	}

	err = exporter.ExportDataset(cmd.Context(), data, export.ExportFormat(format), writer, export.ExportOptions{
		IncludeHeaders: true,
		JSONOptions:    export.JSONOptions{Pretty: pretty},
	})
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write released table: %w", err)
	}
	return nil
}

const maxStoreAttempts = 3

func storeReport(ctx context.Context, rt *Runtime, report *models.SearchReport) error {
	store, err := storage.NewReportStore(&rt.Config.Storage, rt.Logger)
	if err != nil {
		return err
	}
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer store.Close()

	for attempt := 1; ; attempt++ {
		err = store.Save(ctx, report)
		if err == nil || attempt == maxStoreAttempts || !errors.IsRetryable(err) {
			break
		}

		delay := errors.GetRetryDelay(attempt)
		rt.Logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Retrying report save")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return err
	}

	rt.Logger.WithFields(logrus.Fields{
		"search_id": report.ID,
		"backend":   store.Type(),
	}).Info("Stored search report")
	return nil
}
