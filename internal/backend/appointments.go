package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/appointments"
	"github.com/wolfman30/clinic-console/internal/availability"
	"github.com/wolfman30/clinic-console/internal/tenancy"
)

var (
	_ appointments.Fetcher = (*Client)(nil)
	_ appointments.Mutator = (*Client)(nil)
	_ availability.Source  = (*Client)(nil)
)

// FetchAppointments lists every appointment for an all-clinics scope, or one
// doctor's appointments at one clinic.
func (c *Client) FetchAppointments(ctx context.Context, scope tenancy.Scope) ([]appointments.Appointment, error) {
	path := "/api/appointments"
	if !scope.AllClinics() {
		if scope.DoctorID <= 0 {
			return nil, apperrors.Validation("doctor_id", "A doctor is required for this view")
		}
		q := url.Values{}
		if scope.ClinicID > 0 {
			q.Set("clinic_id", strconv.Itoa(scope.ClinicID))
		}
		path = fmt.Sprintf("/api/doctors/%d/appointments", scope.DoctorID)
		if encoded := q.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, "fetch_appointments", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	list, err := normalizeAppointments(raw)
	if err != nil {
		return nil, c.malformed("appointments", err)
	}
	return list, nil
}

// FetchAvailability returns availability days for a doctor in [StartDate, EndDate].
func (c *Client) FetchAvailability(ctx context.Context, query availability.Query) ([]availability.Day, error) {
	q := url.Values{}
	q.Set("clinic_id", strconv.Itoa(query.ClinicID))
	q.Set("doctor_id", strconv.Itoa(query.DoctorID))
	q.Set("start_date", query.StartDate)
	q.Set("end_date", query.EndDate)

	var raw json.RawMessage
	if err := c.doJSON(ctx, "fetch_availability", http.MethodGet, "/api/availability?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw)
	if err != nil {
		return nil, c.malformed("availability", err)
	}
	days := make([]availability.Day, 0, len(items))
	for _, item := range items {
		var day availability.Day
		if err := json.Unmarshal(item, &day); err != nil {
			return nil, c.malformed("availability_day", err)
		}
		days = append(days, day)
	}
	return days, nil
}

// BookAppointment creates an appointment.
func (c *Client) BookAppointment(ctx context.Context, req appointments.BookingRequest) error {
	return c.doJSON(ctx, "book_appointment", http.MethodPost, "/api/appointments/book", req, nil)
}

// RescheduleAppointment moves an appointment.
func (c *Client) RescheduleAppointment(ctx context.Context, req appointments.RescheduleRequest) error {
	path := fmt.Sprintf("/api/appointments/%d/reschedule", req.AppointmentID)
	return c.doJSON(ctx, "reschedule_appointment", http.MethodPost, path, req, nil)
}

// CancelAppointment cancels an appointment.
func (c *Client) CancelAppointment(ctx context.Context, req appointments.CancelRequest) error {
	path := fmt.Sprintf("/api/appointments/%d/cancel", req.AppointmentID)
	return c.doJSON(ctx, "cancel_appointment", http.MethodPost, path, req, nil)
}
