package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pcr-hr/hr-portal/internal/auth"
)

func TestTokenRecordStale(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	cases := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{name: "no expiry", expiresAt: 0, want: false},
		{name: "well before buffer", expiresAt: now.UnixMilli() + 120_000, want: false},
		{name: "exactly on buffer", expiresAt: now.UnixMilli() + 60_000, want: false},
		{name: "inside buffer", expiresAt: now.UnixMilli() + 59_999, want: true},
		{name: "expired", expiresAt: now.UnixMilli() - 1, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := auth.TokenRecord{AccessToken: "a", ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.want, rec.Stale(now))
		})
	}
}

func TestTokenRecordUsable(t *testing.T) {
	now := time.Now()
	fresh := now.Add(10 * time.Minute).UnixMilli()

	assert.True(t, auth.TokenRecord{AccessToken: "a", ExpiresAt: fresh}.Usable(now))
	assert.False(t, auth.TokenRecord{ExpiresAt: fresh}.Usable(now))
	assert.False(t, auth.TokenRecord{AccessToken: "a", ExpiresAt: fresh, Error: auth.ErrorRefreshFailed}.Usable(now))
	assert.False(t, auth.TokenRecord{AccessToken: "a", Error: auth.ErrorRefreshFailed}.Refreshable())
}
