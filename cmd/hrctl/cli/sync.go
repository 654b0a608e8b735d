package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
)

var syncQueue bool

var syncCmd = &cobra.Command{
	Use:   "sync <entity>",
	Short: "Copy master records into the backend",
	Long: `Create every master record of departments, positions or study-programs that
does not exist locally yet. Records are matched by sys_code or kode_prodi.

With --queue the sync is handed to the worker instead; it then requires
--session because the worker acts on behalf of a portal session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if syncQueue {
			return runEnqueueSync(ctx, args[0], cmd.OutOrStdout())
		}

		logger := newLogger()
		res, closeFn, err := opts.resources(ctx, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := runSync(ctx, masterdata.DefaultRegistry(), res, args[0])
		printSyncResult(cmd.OutOrStdout(), result, opts.JSON)
		return err
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncQueue, "queue", false, "Enqueue the sync for the worker instead of running it here")
	rootCmd.AddCommand(syncCmd)
}

func runSync(ctx context.Context, registry *masterdata.Registry, res backend.Resources, entity string) (masterdata.SyncResult, error) {
	ent, ok := registry.Get(entity)
	if !ok {
		return masterdata.SyncResult{Entity: entity}, fmt.Errorf("unknown entity %q", entity)
	}
	inst := ent.Bind(res, masterdata.BindConfig{Logger: newLogger()})
	defer inst.Close()
	return inst.Sync(ctx)
}

func runEnqueueSync(ctx context.Context, entity string, w io.Writer) error {
	if opts.Session == "" {
		return fmt.Errorf("--queue requires --session")
	}
	ent, ok := masterdata.DefaultRegistry().Get(entity)
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	if !ent.Syncable() {
		return masterdata.ErrSyncUnsupported
	}
	jobsCLI, err := NewJobsCLI(opts.redisOpts())
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	info, err := jobsCLI.EnqueueSync(ctx, entity, opts.Session)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "enqueued %s (task %s)\n", info.Type, info.ID)
	return nil
}

func printSyncResult(w io.Writer, result masterdata.SyncResult, asJSON bool) {
	if asJSON {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "Entity:   %s\nFetched:  %d\nCreated:  %d\nSkipped:  %d\nFailed:   %d\n",
		result.Entity, result.Fetched, result.Created, result.Skipped, result.Failed)
}
