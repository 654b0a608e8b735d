package masterdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// ErrSyncUnsupported is returned for entities without a master listing.
var ErrSyncUnsupported = errors.New("sync from master not supported")

const (
	syncPerPage     = 100
	syncConcurrency = 4
)

// SyncResult summarises one sync run.
type SyncResult struct {
	Entity  string `json:"entity"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

type masterSource[T, P any] struct {
	resource backend.Resource[T, P]
}

func (s masterSource[T, P]) List(ctx context.Context, st query.State) (Page[T], error) {
	params := backend.ParamsFromState(st, false)
	env, err := s.resource.Master(ctx, params)
	if err != nil {
		return Page[T]{}, err
	}
	return pageFromEnvelope(env, st), nil
}

func (s masterSource[T, P]) Create(context.Context, P) (T, error) {
	var zero T
	return zero, ErrSyncUnsupported
}

func (s masterSource[T, P]) Update(context.Context, string, P) (T, error) {
	var zero T
	return zero, ErrSyncUnsupported
}

func (s masterSource[T, P]) Remove(context.Context, string) error {
	return ErrSyncUnsupported
}

// Sync copies records from the master listing into the local collection.
// Records whose natural key already exists locally are skipped.
func Sync[T, P any](ctx context.Context, def Definition[T, P], res backend.Resource[T, P], logger *slog.Logger) (SyncResult, error) {
	result := SyncResult{Entity: def.Key}
	if !res.HasMaster() || def.NaturalKey == nil || def.FormFromEntity == nil {
		return result, ErrSyncUnsupported
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := query.State{Page: 1, PerPage: syncPerPage, Status: query.StatusAll, JoinOperator: query.JoinAnd}
	master, err := fetchAll[T, P](ctx, masterSource[T, P]{resource: res}, st, def.GetRowID)
	if err != nil {
		return result, fmt.Errorf("list master %s: %w", def.Key, err)
	}
	local, err := fetchAll[T, P](ctx, ResourceSource[T, P]{Resource: res}, st, def.GetRowID)
	if err != nil {
		return result, fmt.Errorf("list %s: %w", def.Key, err)
	}
	result.Fetched = len(master)

	existing := make(map[string]struct{}, len(local))
	for _, row := range local {
		existing[naturalKey(def, row)] = struct{}{}
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []error
	)
	g.SetLimit(syncConcurrency)
	for _, row := range master {
		key := naturalKey(def, row)
		if _, ok := existing[key]; ok || key == "" {
			result.Skipped++
			continue
		}
		existing[key] = struct{}{}
		payload := def.FormFromEntity(row)
		g.Go(func() error {
			_, err := res.Create(ctx, payload)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				failures = append(failures, fmt.Errorf("%s: %w", key, err))
				return nil
			}
			result.Created++
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("master data sync finished",
		slog.String("entity", def.Key),
		slog.Int("fetched", result.Fetched),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, errors.Join(failures...)
}

func naturalKey[T, P any](def Definition[T, P], row T) string {
	return strings.ToLower(strings.TrimSpace(def.NaturalKey(row)))
}

// SyncMessage is the notification shown after a successful sync.
func SyncMessage(name string) string {
	return fmt.Sprintf("Sinkronisasi %s selesai.", strings.ToLower(name))
}
