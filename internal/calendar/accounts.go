// Package calendar manages the external calendar connections shown in the
// console and the onboarding step that blocks navigation until one exists.
package calendar

import (
	"context"
	"strings"
	"time"
)

// Provider names a calendar service.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// ParseProvider normalizes a provider name. "microsoft" and "office365" map
// to outlook.
func ParseProvider(raw string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "google", "gmail":
		return ProviderGoogle, true
	case "outlook", "microsoft", "office365":
		return ProviderOutlook, true
	default:
		return "", false
	}
}

// Account is one connected (or previously connected) calendar.
type Account struct {
	ID        string    `json:"id"`
	Provider  Provider  `json:"provider"`
	Email     string    `json:"email"`
	Connected bool      `json:"connected"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectRequest starts an OAuth connection.
type ConnectRequest struct {
	Provider    Provider `json:"provider"`
	RedirectURI string   `json:"redirect_uri,omitempty"`
}

// ConnectResult carries the provider consent URL.
type ConnectResult struct {
	AuthURL string `json:"auth_url"`
}

// Backend is the calendar part of the clinic backend.
type Backend interface {
	ListCalendarAccounts(ctx context.Context) ([]Account, error)
	ConnectCalendar(ctx context.Context, req ConnectRequest) (ConnectResult, error)
	DisconnectCalendar(ctx context.Context, accountID string) error
}

// Reconcile collapses duplicate rows for the same provider and email. A
// connected row wins over a disconnected one; otherwise the most recently
// updated row wins. Output keeps the order in which each account first
// appeared.
func Reconcile(accounts []Account) []Account {
	index := make(map[string]int, len(accounts))
	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		key := string(a.Provider) + "|" + strings.ToLower(strings.TrimSpace(a.Email))
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, a)
			continue
		}
		if preferred(a, out[i]) {
			out[i] = a
		}
	}
	return out
}

func preferred(candidate, current Account) bool {
	if candidate.Connected != current.Connected {
		return candidate.Connected
	}
	return candidate.UpdatedAt.After(current.UpdatedAt)
}

// HasConnected reports whether any account is connected.
func HasConnected(accounts []Account) bool {
	for _, a := range accounts {
		if a.Connected {
			return true
		}
	}
	return false
}
