package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// ExportOptions configures one export run.
type ExportOptions struct {
	Entity  string
	All     bool
	Status  string
	Search  string
	Page    int
	PerPage int
	Output  string
}

var exportOpts ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export <entity>",
	Short: "Export master data as CSV",
	Long: `Export one page of an entity, or every page with --all, as CSV.

Entities: departments, study-programs, positions, employee-classes, activities,
leave-quotas, employment-bonds, employees, services.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := newLogger()
		res, closeFn, err := opts.resources(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		exportOpts.Entity = args[0]
		out := cmd.OutOrStdout()
		if exportOpts.Output != "" && exportOpts.Output != "-" {
			f, err := os.Create(exportOpts.Output)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return runExport(ctx, masterdata.DefaultRegistry(), res, exportOpts, out)
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportOpts.All, "all", false, "Export every page matching the filters")
	exportCmd.Flags().StringVar(&exportOpts.Status, "status", "", "Status filter: all, active or inactive")
	exportCmd.Flags().StringVar(&exportOpts.Search, "search", "", "Search text")
	exportCmd.Flags().IntVar(&exportOpts.Page, "page", 0, "Page to export when --all is not set")
	exportCmd.Flags().IntVar(&exportOpts.PerPage, "per-page", 0, "Page size when --all is not set")
	exportCmd.Flags().StringVarP(&exportOpts.Output, "output", "o", "", "Write CSV to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func (o ExportOptions) values() url.Values {
	v := url.Values{}
	if o.Status != "" {
		v.Set(query.KeyStatus, o.Status)
	}
	if o.Search != "" {
		v.Set(query.KeySearch, o.Search)
	}
	if o.Page > 0 {
		v.Set(query.KeyPage, strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		v.Set(query.KeyPerPage, strconv.Itoa(o.PerPage))
	}
	return v
}

// runExport writes the CSV for o.Entity to w.
func runExport(ctx context.Context, registry *masterdata.Registry, res backend.Resources, o ExportOptions, w io.Writer) error {
	ent, ok := registry.Get(o.Entity)
	if !ok {
		return fmt.Errorf("unknown entity %q (known: %v)", o.Entity, registry.Keys())
	}
	inst := ent.Bind(res, masterdata.BindConfig{
		Query:  query.Parse(o.values(), ent.Defaults()),
		Logger: newLogger(),
	})
	defer inst.Close()

	if o.All {
		return inst.ExportAll(ctx, w)
	}
	if err := inst.Refresh(ctx); err != nil {
		return err
	}
	return inst.ExportPage(w)
}
