// Package masterdata drives the list, form, mutation and export behaviour
// shared by every master-data entity.
package masterdata

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

var (
	// ErrMutationPending rejects a mutation while another one of the same
	// kind is in flight.
	ErrMutationPending = errors.New("mutation already in progress")
	// ErrStatusUnsupported is returned when the entity has no status toggle.
	ErrStatusUnsupported = errors.New("status toggle not supported")
	// ErrNothingSelected is returned by bulk requests on an empty selection.
	ErrNothingSelected = errors.New("nothing selected")
)

// ListStatus is the fetch state of the list.
type ListStatus string

// List states.
const (
	ListIdle     ListStatus = "idle"
	ListFetching ListStatus = "fetching"
	ListSettled  ListStatus = "settled"
	ListErrored  ListStatus = "errored"
)

// View is a snapshot of what the page shows.
type View[T any] struct {
	Status     ListStatus
	Rows       []T
	Query      query.State
	Search     string
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	// Refreshing is true while a fetch runs and earlier rows are shown.
	Refreshing bool
	Err        error
}

type listState[T any] struct {
	status     ListStatus
	rows       []T
	totalItems int
	totalPages int
	err        error
	loadedKey  string
	inFlight   int

	// seq numbers fetches in start order; only the latest one is applied.
	seq uint64
}

type formState[P any] struct {
	open      bool
	editingID string
	value     P
	pending   bool
}

// Controller holds the state of one master-data page.
type Controller[T, P any] struct {
	def      Definition[T, P]
	src      Source[T, P]
	defaults query.Defaults
	notifier Notifier
	logger   *slog.Logger

	autoCtx      context.Context
	onNavigate   func(url.Values)
	onInvalidate func(context.Context)

	mu            sync.Mutex
	state         query.State
	searchInput   string
	debouncer     *query.Debouncer
	list          listState[T]
	form          formState[P]
	statusPending map[string]bool
	selection     []T
	bulkPending   bool
	stale         bool
	confirmation  *ConfirmationRequest
}

// Option customises a Controller.
type Option[T, P any] func(*Controller[T, P])

// WithNotifier sets the notification sink.
func WithNotifier[T, P any](n Notifier) Option[T, P] {
	return func(c *Controller[T, P]) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T, P any](logger *slog.Logger) Option[T, P] {
	return func(c *Controller[T, P]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNavigate registers the history-replace hook called after each
// committed query change.
func WithNavigate[T, P any](fn func(url.Values)) Option[T, P] {
	return func(c *Controller[T, P]) {
		c.onNavigate = fn
	}
}

// WithInvalidate registers a hook run after successful mutations.
func WithInvalidate[T, P any](fn func(context.Context)) Option[T, P] {
	return func(c *Controller[T, P]) {
		c.onInvalidate = fn
	}
}

// WithAutoRefresh makes query changes and invalidations fetch in the
// background using ctx.
func WithAutoRefresh[T, P any](ctx context.Context) Option[T, P] {
	return func(c *Controller[T, P]) {
		c.autoCtx = ctx
	}
}

// WithInitialQuery seeds the state, typically parsed from the URL.
func WithInitialQuery[T, P any](st query.State) Option[T, P] {
	return func(c *Controller[T, P]) {
		c.state = st.Clone()
		c.searchInput = st.Search
	}
}

// NewController builds a Controller.
func NewController[T, P any](def Definition[T, P], src Source[T, P], opts ...Option[T, P]) *Controller[T, P] {
	defaults := def.Defaults()
	c := &Controller[T, P]{
		def:           def,
		src:           src,
		defaults:      defaults,
		notifier:      discardNotifier{},
		logger:        slog.Default(),
		state:         defaults.Initial(),
		list:          listState[T]{status: ListIdle},
		form:          formState[P]{value: def.DefaultForm},
		statusPending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.debouncer = query.NewDebouncer(query.SearchDebounce, c.commitSearch)
	return c
}

// Definition returns the entity definition.
func (c *Controller[T, P]) Definition() Definition[T, P] {
	return c.def
}

// Query returns the committed query state.
func (c *Controller[T, P]) Query() query.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// URL returns the committed state as URL values.
func (c *Controller[T, P]) URL() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Encode(c.defaults)
}

// SetPage moves to page n.
func (c *Controller[T, P]) SetPage(n int) {
	c.update(func(st *query.State) {
		if n < 1 {
			n = 1
		}
		st.Page = n
	})
}

// SetPerPage changes the page size and returns to the first page.
func (c *Controller[T, P]) SetPerPage(n int) {
	c.update(func(st *query.State) {
		if n < 1 {
			n = c.defaults.Initial().PerPage
		}
		st.PerPage = n
		st.Page = 1
	})
}

// SetStatus changes the status filter and returns to the first page.
func (c *Controller[T, P]) SetStatus(status string) {
	c.update(func(st *query.State) {
		st.Status = status
		st.Page = 1
	})
}

// SetSort replaces the sort keys.
func (c *Controller[T, P]) SetSort(sorts []query.SortSpec) {
	c.update(func(st *query.State) {
		st.Sort = append([]query.SortSpec(nil), sorts...)
	})
}

// SetFilters replaces the advanced filters and returns to the first page.
func (c *Controller[T, P]) SetFilters(filters []query.FilterSpec, joinOperator string) {
	c.update(func(st *query.State) {
		st.Filters = append([]query.FilterSpec(nil), filters...)
		if joinOperator != query.JoinOr {
			joinOperator = query.JoinAnd
		}
		st.JoinOperator = joinOperator
		st.Page = 1
	})
}

// SetSearchInput records typed search text. The search is committed, and the
// page reset, once input has been quiet for query.SearchDebounce.
func (c *Controller[T, P]) SetSearchInput(text string) {
	c.mu.Lock()
	c.searchInput = text
	c.mu.Unlock()
	c.debouncer.Push(text)
}

// FlushSearch commits pending search input immediately.
func (c *Controller[T, P]) FlushSearch() {
	c.debouncer.Flush()
}

// Close stops pending timers.
func (c *Controller[T, P]) Close() {
	c.debouncer.Stop()
}

func (c *Controller[T, P]) commitSearch(text string) {
	c.update(func(st *query.State) {
		st.Search = text
		st.Page = 1
	})
}

func (c *Controller[T, P]) update(mutate func(*query.State)) {
	c.mu.Lock()
	before := c.state.Key()
	mutate(&c.state)
	changed := c.state.Key() != before
	values := c.state.Encode(c.defaults)
	c.mu.Unlock()
	if !changed {
		return
	}
	if c.onNavigate != nil {
		c.onNavigate(values)
	}
	c.trigger()
}

func (c *Controller[T, P]) trigger() {
	if c.autoCtx == nil {
		return
	}
	go func() {
		if err := c.Refresh(c.autoCtx); err != nil {
			c.logger.Debug("background refresh failed", slog.String("entity", c.def.Key), slog.Any("error", err))
		}
	}()
}

// Refresh fetches the current query. A response is discarded when the query
// changed or a newer fetch started while it was in flight.
func (c *Controller[T, P]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	st := c.state.Clone()
	key := st.Key()
	c.list.seq++
	seq := c.list.seq
	c.list.inFlight++
	if c.list.status != ListSettled || c.list.loadedKey != key {
		c.list.status = ListFetching
	}
	c.mu.Unlock()

	page, err := c.src.List(ctx, st)

	c.mu.Lock()
	c.list.inFlight--
	if c.state.Key() != key || c.list.seq != seq {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.list.status = ListErrored
		c.list.err = err
		c.mu.Unlock()
		c.logger.Warn("list fetch failed", slog.String("entity", c.def.Key), slog.Any("error", err))
		return err
	}
	c.list.status = ListSettled
	c.list.err = nil
	c.list.rows = page.Rows
	c.list.totalItems = page.TotalItems
	c.list.totalPages = page.TotalPages
	c.list.loadedKey = key
	c.stale = false

	clamped := c.state.Clamp(page.TotalPages)
	moved := clamped.Page != c.state.Page
	if moved {
		c.state = clamped
	}
	values := c.state.Encode(c.defaults)
	c.mu.Unlock()

	if moved {
		if c.onNavigate != nil {
			c.onNavigate(values)
		}
		c.trigger()
	}
	return nil
}

// View returns the processed rows and list metadata.
func (c *Controller[T, P]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state.Clone()
	status := c.list.status
	if c.list.inFlight > 0 && c.list.loadedKey != "" {
		status = ListFetching
	}
	totalPages := c.list.totalPages
	if totalPages < 1 {
		totalPages = 1
	}
	return View[T]{
		Status:     status,
		Rows:       c.def.process(c.list.rows, st),
		Query:      st,
		Search:     c.searchInput,
		Page:       st.Page,
		PerPage:    st.PerPage,
		TotalItems: c.list.totalItems,
		TotalPages: totalPages,
		Refreshing: c.list.inFlight > 0 && c.list.loadedKey != "",
		Err:        c.list.err,
	}
}

// Stale reports whether a mutation invalidated the loaded rows.
func (c *Controller[T, P]) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

func (c *Controller[T, P]) invalidate(ctx context.Context) {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
	if c.onInvalidate != nil {
		c.onInvalidate(ctx)
	}
	c.trigger()
}
