package masterdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

// ResourceFactory returns upstream resources authenticated for the caller.
type ResourceFactory func(ctx context.Context) backend.Resources

// SyncEnqueuer schedules a background sync and returns the task id.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, entity string) (string, error)
}

// Bulk actions accepted by the bulk endpoint.
const (
	BulkDelete     = "delete"
	BulkActivate   = "activate"
	BulkDeactivate = "deactivate"
)

// Handler exposes the master-data controllers over HTTP.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	resources ResourceFactory
	lookups   *LookupService
	enqueuer  SyncEnqueuer
}

// NewHandler constructs a Handler. enqueuer may be nil, in which case sync
// runs inside the request.
func NewHandler(logger *slog.Logger, registry *Registry, resources ResourceFactory, lookups *LookupService, enqueuer SyncEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry, resources: resources, lookups: lookups, enqueuer: enqueuer}
}

// MountRoutes registers master-data routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lookups", h.handleLookups)
	r.Route("/{entity}", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
		r.Post("/", h.handleCreate)
		r.Post("/bulk", h.handleBulk)
		r.Post("/sync", h.handleSync)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/status", h.handleStatus)
		r.Delete("/{id}", h.handleDelete)
	})
}

type listMeta struct {
	Pagination    backend.Pagination `json:"pagination"`
	Query         string             `json:"query"`
	Status        ListStatus         `json:"status"`
	Notifications []Notification     `json:"notifications,omitempty"`
}

type mutationMeta struct {
	Notifications []Notification `json:"notifications,omitempty"`
}

type statusRequest struct {
	Row      json.RawMessage `json:"row"`
	IsActive bool            `json:"is_active"`
}

type bulkRequest struct {
	Action  string            `json:"action"`
	Rows    []json.RawMessage `json:"rows"`
	Confirm bool              `json:"confirm"`
}

type confirmationResponse struct {
	Confirmation *ConfirmationRequest `json:"confirmation"`
}

func (h *Handler) handleLookups(w http.ResponseWriter, r *http.Request) {
	lookups, err := h.lookups.Load(r.Context(), h.resources(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("load lookups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "OK", lookups, nil)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	inst, ent, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	if err := inst.Refresh(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	snap := inst.Snapshot()
	httpx.OK(w, "OK", snap.Rows, listMeta{
		Pagination: backend.Pagination{
			Page:       snap.Page,
			PerPage:    snap.PerPage,
			TotalItems: snap.TotalItems,
			TotalPages: snap.TotalPages,
		},
		Query:         inst.URL().Encode(),
		Status:        snap.Status,
		Notifications: rec.Notifications(),
	})
	h.logger.Debug("master data listed", slog.String("entity", ent.Key()), slog.Int("rows", snap.TotalItems))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	inst, ent, _, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()

	all := r.URL.Query().Get("all") == "1"
	var buf bytes.Buffer
	if all {
		if err := inst.ExportAll(r.Context(), &buf); err != nil {
			h.respondError(w, err)
			return
		}
	} else {
		if err := inst.Refresh(r.Context()); err != nil {
			h.respondError(w, err)
			return
		}
		if err := inst.ExportPage(&buf); err != nil {
			h.respondError(w, err)
			return
		}
	}
	filename := ent.Key() + ".csv"
	if all {
		filename = ent.Key() + "-all.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "")
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id string) {
	inst, _, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	var raw json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	saved, err := inst.Submit(r.Context(), id, raw)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, lastMessage(rec), saved, mutationMeta{Notifications: rec.Notifications()})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	inst, _, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || len(req.Row) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := inst.ToggleStatus(r.Context(), req.Row, req.IsActive); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, lastMessage(rec), nil, mutationMeta{Notifications: rec.Notifications()})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	inst, _, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	q := r.URL.Query()
	req := inst.RequestDelete(chi.URLParam(r, "id"), q.Get("label"))
	if q.Get("confirm") != "1" {
		req.Dismiss()
		httpx.OK(w, "Konfirmasi diperlukan.", confirmationResponse{Confirmation: req}, nil)
		return
	}
	if err := req.Confirm(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, lastMessage(rec), nil, mutationMeta{Notifications: rec.Notifications()})
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	inst, _, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := inst.SelectRows(req.Rows); err != nil {
		h.respondError(w, err)
		return
	}

	var (
		confirmation *ConfirmationRequest
		err          error
	)
	switch req.Action {
	case BulkDelete:
		confirmation, err = inst.RequestBulkDelete()
	case BulkActivate:
		confirmation, err = inst.RequestBulkStatus(true)
	case BulkDeactivate:
		confirmation, err = inst.RequestBulkStatus(false)
	default:
		httpx.Fail(w, http.StatusBadRequest, "unknown bulk action")
		return
	}
	if err != nil {
		h.respondError(w, err, rec)
		return
	}
	if !req.Confirm {
		confirmation.Dismiss()
		httpx.OK(w, "Konfirmasi diperlukan.", confirmationResponse{Confirmation: confirmation}, nil)
		return
	}
	if err := confirmation.Confirm(r.Context()); err != nil {
		h.respondError(w, err, rec)
		return
	}
	httpx.OK(w, lastMessage(rec), nil, mutationMeta{Notifications: rec.Notifications()})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ent, ok := h.entity(w, r)
	if !ok {
		return
	}
	if !ent.Syncable() {
		h.respondError(w, ErrSyncUnsupported)
		return
	}
	if h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueSync(r.Context(), ent.Key())
		if err != nil {
			h.logger.Error("enqueue sync", slog.String("entity", ent.Key()), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, httpx.Envelope{
			Success: true,
			Code:    http.StatusAccepted,
			Message: "Sinkronisasi dijadwalkan.",
			Data:    map[string]string{"task_id": taskID},
		})
		return
	}

	inst, _, rec, ok := h.bind(w, r)
	if !ok {
		return
	}
	defer inst.Close()
	result, err := inst.Sync(r.Context())
	if err != nil {
		h.respondError(w, err, rec)
		return
	}
	httpx.OK(w, lastMessage(rec), result, mutationMeta{Notifications: rec.Notifications()})
}

func (h *Handler) entity(w http.ResponseWriter, r *http.Request) (Entity, bool) {
	ent, ok := h.registry.Get(chi.URLParam(r, "entity"))
	if !ok {
		httpx.Fail(w, http.StatusNotFound, "unknown entity")
		return nil, false
	}
	return ent, true
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request) (Instance, Entity, *Recorder, bool) {
	ent, ok := h.entity(w, r)
	if !ok {
		return nil, nil, nil, false
	}
	values := r.URL.Query()
	extra := url.Values{}
	for _, name := range ent.ListFilters() {
		if v := values.Get(name); v != "" {
			extra.Set(name, v)
		}
	}
	rec := &Recorder{}
	inst := ent.Bind(h.resources(r.Context()), BindConfig{
		Query:      query.Parse(values, ent.Defaults()),
		Extra:      extra,
		Notifier:   rec,
		Logger:     h.logger,
		Invalidate: h.invalidator(ent.Key()),
	})
	return inst, ent, rec, true
}

func (h *Handler) invalidator(key string) func(context.Context) {
	return func(ctx context.Context) {
		if h.lookups == nil || !h.lookups.Affects(key) {
			return
		}
		if err := h.lookups.Invalidate(ctx); err != nil {
			h.logger.Warn("invalidate lookups", slog.String("entity", key), slog.Any("error", err))
		}
	}
}

// respondError maps controller errors to responses. When rec holds an
// aggregated failure notification its text is used as the message.
func (h *Handler) respondError(w http.ResponseWriter, err error, rec ...*Recorder) {
	switch {
	case errors.Is(err, ErrMutationPending):
		httpx.Fail(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ErrStatusUnsupported), errors.Is(err, ErrSyncUnsupported):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrNothingSelected):
		message := err.Error()
		if len(rec) > 0 {
			message = lastMessage(rec[0])
		}
		httpx.Fail(w, http.StatusBadRequest, message)
		return
	}
	var verr *backend.ValidationError
	if errors.As(err, &verr) {
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.Envelope{
			Success: false,
			Code:    http.StatusUnprocessableEntity,
			Message: verr.Error(),
			Data:    verr.Fields,
		})
		return
	}
	if len(rec) > 0 && !errors.Is(err, httpx.ErrUnauthorized) {
		if n, ok := rec[0].Last(); ok && n.Level == LevelError {
			status := http.StatusBadGateway
			var statusErr httpx.StatusError
			if errors.As(err, &statusErr) {
				status = statusErr.HTTPStatus()
			}
			httpx.Fail(w, status, n.Message)
			return
		}
	}
	httpx.RespondError(w, err)
}

func lastMessage(rec *Recorder) string {
	if n, ok := rec.Last(); ok {
		return n.Message
	}
	return "OK"
}
