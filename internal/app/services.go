package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
	"github.com/pcr-hr/hr-portal/jobs"
)

// SessionCookieName names the portal session cookie and its Redis namespace.
const SessionCookieName = "hrportal_session"

// TokenAcquirer yields a usable access token for a session.
type TokenAcquirer interface {
	AcquireValidToken(ctx context.Context, sessionID string) (string, error)
}

// SessionResources builds the upstream resources for a request, authenticated
// with the token of the session found in the request context.
func SessionResources(client *backend.Client, masterBaseURL string, tokens TokenAcquirer) masterdata.ResourceFactory {
	return func(ctx context.Context) backend.Resources {
		sessionID := auth.SessionIDFromContext(ctx)
		return ResourcesForSession(client, masterBaseURL, tokens, sessionID)
	}
}

// ResourcesForSession binds the upstream resources to a fixed session id.
func ResourcesForSession(client *backend.Client, masterBaseURL string, tokens TokenAcquirer, sessionID string) backend.Resources {
	authed := client.WithTokenSource(func(ctx context.Context) (string, error) {
		return tokens.AcquireValidToken(ctx, sessionID)
	})
	return backend.NewResources(authed, masterBaseURL)
}

// SyncEnqueuer schedules sync tasks for the session in the request context.
type SyncEnqueuer struct {
	Client *jobs.Client
}

// EnqueueSync implements masterdata.SyncEnqueuer.
func (e SyncEnqueuer) EnqueueSync(ctx context.Context, entity string) (string, error) {
	sessionID := auth.SessionIDFromContext(ctx)
	if sessionID == "" {
		return "", httpx.ErrUnauthorized
	}
	info, err := e.Client.EnqueueSync(ctx, jobs.SyncPayload{Entity: entity, SessionID: sessionID})
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// SessionSyncer runs sync tasks in the worker using the stored session tokens.
type SessionSyncer struct {
	Registry      *masterdata.Registry
	Client        *backend.Client
	MasterBaseURL string
	Tokens        TokenAcquirer
	Lookups       *masterdata.LookupService
	Logger        *slog.Logger
}

// Sync implements jobs.Syncer.
func (s *SessionSyncer) Sync(ctx context.Context, entity, sessionID string) (masterdata.SyncResult, error) {
	ent, ok := s.Registry.Get(entity)
	if !ok {
		return masterdata.SyncResult{Entity: entity}, fmt.Errorf("%w: unknown entity %q", masterdata.ErrSyncUnsupported, entity)
	}
	res := ResourcesForSession(s.Client, s.MasterBaseURL, s.Tokens, sessionID)
	inst := ent.Bind(res, masterdata.BindConfig{
		Logger: s.Logger,
		Invalidate: func(ctx context.Context) {
			if s.Lookups == nil || !s.Lookups.Affects(entity) {
				return
			}
			if err := s.Lookups.Invalidate(ctx); err != nil && s.Logger != nil {
				s.Logger.Warn("invalidate lookups", slog.String("entity", entity), slog.Any("error", err))
			}
		},
	})
	defer inst.Close()
	return inst.Sync(ctx)
}
