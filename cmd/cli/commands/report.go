package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/internal/export"
	"github.com/inferloop/anonsearch/internal/storage"
	"github.com/inferloop/anonsearch/pkg/constants"
)

func NewReportCmd(load RuntimeLoader) *cobra.Command {
	var (
		outputFile string
		list       bool
		limit      int64
	)

	cmd := &cobra.Command{
		Use:   "report [id]",
		Short: "Fetch or list stored search reports",
		Long: `Load a search report saved with search --store from the configured backend and print it as JSON.
With --list, print the IDs of stored reports instead, one per line.`,
		Example: `  anonsearch-cli report 2b1f6a3e-4c1d-4f5e-9d43-0f0d8f5b7c21
  ANONSEARCH_STORAGE_TYPE=redis anonsearch-cli report <id> -o report.json
  ANONSEARCH_STORAGE_TYPE=redis anonsearch-cli report --list --limit 20`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list && (limit < 0 || limit > constants.MaxReportListLimit) {
				return fmt.Errorf("--limit must be between 0 and %d", constants.MaxReportListLimit)
			}

			rt, err := load()
			if err != nil {
				return err
			}

			store, err := storage.NewReportStore(&rt.Config.Storage, rt.Logger)
			if err != nil {
				return err
			}
			if err := store.Connect(cmd.Context()); err != nil {
				return err
			}
			defer store.Close()

			writer, closeFn, err := openOutput(cmd, outputFile)
			if err != nil {
				return err
			}

			if list {
				ids, err := store.List(cmd.Context(), limit)
				for _, id := range ids {
					fmt.Fprintln(writer, id)
				}
				if cerr := closeFn(); err == nil {
					err = cerr
				}
				return err
			}

			report, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				closeFn()
				return err
			}

			exporter, err := newExporter(rt)
			if err != nil {
				closeFn()
				return err
			}

			err = exporter.ExportReport(cmd.Context(), report, writer, export.ExportOptions{
				JSONOptions: export.JSONOptions{Pretty: true},
			})
			if cerr := closeFn(); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().BoolVar(&list, "list", false, "List stored report IDs instead of fetching one")
	cmd.Flags().Int64Var(&limit, "limit", constants.DefaultReportListLimit, "Maximum number of IDs to list (0 for all)")

	return cmd
}
