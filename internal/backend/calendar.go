package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfman30/clinic-console/internal/calendar"
)

var _ calendar.Backend = (*Client)(nil)

// ListCalendarAccounts lists the caller's calendar connections.
func (c *Client) ListCalendarAccounts(ctx context.Context) ([]calendar.Account, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "list_calendar_accounts", http.MethodGet, "/api/calendar/accounts", nil, &raw); err != nil {
		return nil, err
	}
	accounts, err := normalizeCalendarAccounts(raw)
	if err != nil {
		return nil, c.malformed("calendar_accounts", err)
	}
	return accounts, nil
}

// ConnectCalendar starts the provider's OAuth flow.
func (c *Client) ConnectCalendar(ctx context.Context, req calendar.ConnectRequest) (calendar.ConnectResult, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "connect_calendar", http.MethodPost, "/api/calendar/connect", req, &raw); err != nil {
		return calendar.ConnectResult{}, err
	}
	f, err := decodeFields(raw)
	if err != nil {
		return calendar.ConnectResult{}, c.malformed("calendar_connect", err)
	}
	return calendar.ConnectResult{AuthURL: f.str("auth_url", "authorization_url", "url")}, nil
}

// DisconnectCalendar removes a connection.
func (c *Client) DisconnectCalendar(ctx context.Context, accountID string) error {
	path := fmt.Sprintf("/api/calendar/accounts/%s", url.PathEscape(accountID))
	return c.doJSON(ctx, "disconnect_calendar", http.MethodDelete, path, nil, nil)
}
