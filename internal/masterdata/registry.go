package masterdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

// Entity is the type-erased registry entry used by the HTTP handler, the
// worker and the CLI.
type Entity interface {
	Key() string
	Name() string
	Defaults() query.Defaults
	// ListFilters names extra query parameters forwarded upstream.
	ListFilters() []string
	// Syncable reports whether the entity can be copied from master.
	Syncable() bool
	// Bind builds a controller over res.
	Bind(res backend.Resources, cfg BindConfig) Instance
}

// BindConfig carries the per-request collaborators of an Instance.
type BindConfig struct {
	Query      query.State
	Extra      url.Values
	Notifier   Notifier
	Logger     *slog.Logger
	Invalidate func(context.Context)
}

// Snapshot is a type-erased View.
type Snapshot struct {
	Status     ListStatus  `json:"status"`
	Rows       any         `json:"rows"`
	Query      query.State `json:"query"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalItems int         `json:"total_items"`
	TotalPages int         `json:"total_pages"`
}

// Instance is a Controller with JSON-typed inputs.
type Instance interface {
	Refresh(ctx context.Context) error
	Snapshot() Snapshot
	URL() url.Values
	// Submit creates a record, or updates id when it is not empty.
	Submit(ctx context.Context, id string, raw json.RawMessage) (any, error)
	RequestDelete(id, label string) *ConfirmationRequest
	ToggleStatus(ctx context.Context, rawRow json.RawMessage, next bool) error
	SelectRows(rows []json.RawMessage) error
	RequestBulkDelete() (*ConfirmationRequest, error)
	RequestBulkStatus(next bool) (*ConfirmationRequest, error)
	ExportPage(w io.Writer) error
	ExportAll(ctx context.Context, w io.Writer) error
	Sync(ctx context.Context) (SyncResult, error)
	Close()
}

type entity[T, P any] struct {
	def      Definition[T, P]
	resource func(backend.Resources) backend.Resource[T, P]
	sync     bool
}

func (e entity[T, P]) Key() string              { return e.def.Key }
func (e entity[T, P]) Name() string             { return e.def.Name }
func (e entity[T, P]) Defaults() query.Defaults { return e.def.Defaults() }
func (e entity[T, P]) ListFilters() []string    { return e.def.ListFilters }
func (e entity[T, P]) Syncable() bool           { return e.sync && e.def.NaturalKey != nil }

func (e entity[T, P]) Bind(res backend.Resources, cfg BindConfig) Instance {
	resource := e.resource(res)
	src := ResourceSource[T, P]{Resource: resource, Advanced: e.def.Advanced, Extra: cfg.Extra}
	opts := []Option[T, P]{
		WithNotifier[T, P](cfg.Notifier),
		WithLogger[T, P](cfg.Logger),
		WithInvalidate[T, P](cfg.Invalidate),
	}
	if cfg.Query.PerPage > 0 {
		opts = append(opts, WithInitialQuery[T, P](cfg.Query))
	}
	return &instance[T, P]{
		Controller: NewController[T, P](e.def, src, opts...),
		resource:   resource,
		sync:       e.Syncable(),
		logger:     cfg.Logger,
	}
}

type instance[T, P any] struct {
	*Controller[T, P]
	resource backend.Resource[T, P]
	sync     bool
	logger   *slog.Logger
}

func (i *instance[T, P]) Snapshot() Snapshot {
	v := i.View()
	rows := v.Rows
	if rows == nil {
		rows = []T{}
	}
	return Snapshot{
		Status:     v.Status,
		Rows:       rows,
		Query:      v.Query,
		Page:       v.Page,
		PerPage:    v.PerPage,
		TotalItems: v.TotalItems,
		TotalPages: v.TotalPages,
	}
}

func (i *instance[T, P]) Submit(ctx context.Context, id string, raw json.RawMessage) (any, error) {
	var payload P
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if id == "" {
		i.OpenCreate()
	} else {
		i.OpenEditByID(id, payload)
	}
	return i.Controller.Submit(ctx, payload)
}

func (i *instance[T, P]) RequestDelete(id, label string) *ConfirmationRequest {
	return i.RequestDeleteByID(id, label)
}

func (i *instance[T, P]) ToggleStatus(ctx context.Context, rawRow json.RawMessage, next bool) error {
	var row T
	if err := json.Unmarshal(rawRow, &row); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return i.Controller.ToggleStatus(ctx, row, next)
}

func (i *instance[T, P]) SelectRows(rows []json.RawMessage) error {
	for _, raw := range rows {
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		i.Select(row)
	}
	return nil
}

func (i *instance[T, P]) Sync(ctx context.Context) (SyncResult, error) {
	if !i.sync {
		return SyncResult{Entity: i.def.Key}, ErrSyncUnsupported
	}
	result, err := Sync(ctx, i.def, i.resource, i.logger)
	if err != nil {
		i.notifier.Notify(LevelError, err.Error())
	} else {
		i.notifier.Notify(LevelSuccess, SyncMessage(i.def.Name))
	}
	if result.Created > 0 {
		i.invalidate(ctx)
	}
	return result, err
}

// Registry indexes entities by key.
type Registry struct {
	entities map[string]Entity
}

// NewRegistry builds a registry of the given entities.
func NewRegistry(entities ...Entity) *Registry {
	r := &Registry{entities: make(map[string]Entity, len(entities))}
	for _, e := range entities {
		r.entities[e.Key()] = e
	}
	return r
}

// DefaultRegistry registers every master-data entity.
func DefaultRegistry() *Registry {
	return NewRegistry(
		entity[backend.Department, backend.DepartmentPayload]{
			def:      Departments(),
			resource: func(r backend.Resources) backend.Resource[backend.Department, backend.DepartmentPayload] { return r.Departments },
			sync:     true,
		},
		entity[backend.StudyProgram, backend.StudyProgramPayload]{
			def:      StudyPrograms(),
			resource: func(r backend.Resources) backend.Resource[backend.StudyProgram, backend.StudyProgramPayload] { return r.StudyPrograms },
			sync:     true,
		},
		entity[backend.Position, backend.PositionPayload]{
			def:      Positions(),
			resource: func(r backend.Resources) backend.Resource[backend.Position, backend.PositionPayload] { return r.Positions },
			sync:     true,
		},
		entity[backend.EmployeeClass, backend.EmployeeClassPayload]{
			def:      EmployeeClasses(),
			resource: func(r backend.Resources) backend.Resource[backend.EmployeeClass, backend.EmployeeClassPayload] { return r.EmployeeClasses },
		},
		entity[backend.Activity, backend.ActivityPayload]{
			def:      Activities(),
			resource: func(r backend.Resources) backend.Resource[backend.Activity, backend.ActivityPayload] { return r.Activities },
		},
		entity[backend.LeaveQuota, backend.LeaveQuotaPayload]{
			def:      LeaveQuotas(),
			resource: func(r backend.Resources) backend.Resource[backend.LeaveQuota, backend.LeaveQuotaPayload] { return r.LeaveQuotas },
		},
		entity[backend.EmploymentBond, backend.EmploymentBondPayload]{
			def:      EmploymentBonds(),
			resource: func(r backend.Resources) backend.Resource[backend.EmploymentBond, backend.EmploymentBondPayload] { return r.EmploymentBonds },
		},
		entity[backend.Employee, backend.EmployeePayload]{
			def:      Employees(),
			resource: func(r backend.Resources) backend.Resource[backend.Employee, backend.EmployeePayload] { return r.Employees },
		},
		entity[backend.Service, backend.ServicePayload]{
			def:      Services(),
			resource: func(r backend.Resources) backend.Resource[backend.Service, backend.ServicePayload] { return r.Services },
		},
	)
}

// Get returns the entity registered under key.
func (r *Registry) Get(key string) (Entity, bool) {
	e, ok := r.entities[key]
	return e, ok
}

// Keys lists registered keys in order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entities))
	for k := range r.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
