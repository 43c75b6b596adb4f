package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinic-console/internal/reminders"
)

var _ reminders.Backend = (*Client)(nil)

// FetchUpcomingReminderCandidates lists appointments in the reminder window.
// doctorID 0 lists every doctor's.
func (c *Client) FetchUpcomingReminderCandidates(ctx context.Context, doctorID int) ([]reminders.Candidate, error) {
	path := "/api/reminders/upcoming"
	if doctorID > 0 {
		path += "?" + url.Values{"doctor_id": {strconv.Itoa(doctorID)}}.Encode()
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, "fetch_reminder_candidates", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	list, err := normalizeCandidates(raw)
	if err != nil {
		return nil, c.malformed("reminder_candidates", err)
	}
	return list, nil
}

// SendReminders sends a reminder batch and returns the backend's report.
func (c *Client) SendReminders(ctx context.Context, req reminders.BatchRequest) (reminders.BatchResult, error) {
	var result reminders.BatchResult
	if err := c.doJSON(ctx, "send_reminders", http.MethodPost, "/api/reminders/send", req, &result); err != nil {
		return reminders.BatchResult{}, err
	}
	return result, nil
}

// SendSingleReminder sends one reminder.
func (c *Client) SendSingleReminder(ctx context.Context, appointmentID int) (reminders.SingleResult, error) {
	var result reminders.SingleResult
	path := fmt.Sprintf("/api/reminders/%d/send", appointmentID)
	if err := c.doJSON(ctx, "send_reminder", http.MethodPost, path, nil, &result); err != nil {
		return reminders.SingleResult{}, err
	}
	return result, nil
}
