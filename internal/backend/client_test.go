package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/appointments"
	"github.com/wolfman30/clinic-console/internal/availability"
	"github.com/wolfman30/clinic-console/internal/calendar"
	"github.com/wolfman30/clinic-console/internal/observability/metrics"
	"github.com/wolfman30/clinic-console/internal/reminders"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.body)
		}
		seen = append(seen, req)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{BaseURL: srv.URL + "/", Logger: logging.New("error")})
	require.NoError(t, err)
	return client, &seen
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "  "})
	require.Error(t, err)
}

func TestFetchAppointments_AllClinics(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, `[
		{"appointment_id": 1, "patient_name": "Ann", "appointment_time": "2024-06-10T09:00:00", "status": "Scheduled", "duration": 30},
		{"id": 2, "patient_name": "Bob", "appointment_datetime": "2024-06-11T10:00:00Z"}
	]`))

	ctx := WithAuthToken(context.Background(), "tok-123")
	list, err := client.FetchAppointments(ctx, tenancy.Scope{Role: tenancy.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "/api/appointments", (*seen)[0].path)
	assert.Equal(t, "Bearer tok-123", (*seen)[0].auth)
	assert.Equal(t, 1, list[0].AppointmentID)
	assert.Equal(t, "scheduled", list[0].Status)
	require.NotNil(t, list[0].Duration)
	assert.Equal(t, 30, *list[0].Duration)
	assert.Equal(t, 2, list[1].AppointmentID)
	assert.Equal(t, "2024-06-11T10:00:00Z", list[1].AppointmentTime)
	assert.Nil(t, list[1].Duration)
}

func TestFetchAppointments_DoctorScopeWrapped(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, `{"appointments": [{"appointment_id": 7}]}`))

	list, err := client.FetchAppointments(context.Background(), tenancy.Scope{Role: tenancy.RoleDoctor, ClinicID: 3, DoctorID: 9})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 7, list[0].AppointmentID)
	assert.Equal(t, "/api/doctors/9/appointments", (*seen)[0].path)
	assert.Equal(t, "clinic_id=3", (*seen)[0].query)
	assert.Empty(t, (*seen)[0].auth)
}

func TestFetchAppointments_DoctorWithoutID(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, `[]`))

	_, err := client.FetchAppointments(context.Background(), tenancy.Scope{Role: tenancy.RoleDoctor, ClinicID: 3})
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, *seen)
}

func TestFetchAppointments_MalformedPayload(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, `[1, 2]`))

	_, err := client.FetchAppointments(context.Background(), tenancy.Scope{Role: tenancy.RoleAdmin})
	var backendErr *apperrors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Empty(t, backendErr.Message)
}

func TestFetchAppointments_ErrorEnvelopeFailsLoad(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, `{"status":"error","message":"database unavailable"}`))

	_, err := client.FetchAppointments(context.Background(), tenancy.Scope{Role: tenancy.RoleAdmin})
	var backendErr *apperrors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusOK, backendErr.StatusCode)

	vm := appointments.NewViewModel(appointments.ViewModelConfig{
		Fetcher:  client,
		Scope:    tenancy.Scope{Role: tenancy.RoleAdmin},
		Location: time.UTC,
		Now:      time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	})
	require.Error(t, vm.Refresh(context.Background()))
	state, loadErr := vm.State()
	assert.Equal(t, appointments.LoadFailed, state)
	assert.Error(t, loadErr)
	assert.Empty(t, vm.Derive(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)))
}

func TestFetchAvailability(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, `{"availability": [
		{"date": "2024-06-10", "is_available": true, "time_slots": {"morning": ["9:00 AM"], "afternoon": ["1:30 PM"]}}
	]}`))

	days, err := client.FetchAvailability(context.Background(), availability.Query{
		ClinicID: 1, DoctorID: 2, StartDate: "2024-06-10", EndDate: "2024-06-10",
	})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.True(t, days[0].IsAvailable)
	assert.Equal(t, []string{"9:00 AM"}, days[0].TimeSlots.Morning)
	assert.Equal(t, []string{"1:30 PM"}, days[0].TimeSlots.Afternoon)

	got := (*seen)[0]
	assert.Equal(t, "/api/availability", got.path)
	assert.Equal(t, "clinic_id=1&doctor_id=2&end_date=2024-06-10&start_date=2024-06-10", got.query)
}

func TestMutations_Routes(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, `{"message": "ok"}`))
	ctx := context.Background()

	require.NoError(t, client.BookAppointment(ctx, appointments.BookingRequest{ClinicID: 1, DoctorID: 2, PatientID: 3, Date: "2024-06-12", Time: "09:00"}))
	require.NoError(t, client.RescheduleAppointment(ctx, appointments.RescheduleRequest{AppointmentID: 44, Date: "2024-06-13", Time: "14:30"}))
	require.NoError(t, client.CancelAppointment(ctx, appointments.CancelRequest{AppointmentID: 44}))

	require.Len(t, *seen, 3)
	assert.Equal(t, "/api/appointments/book", (*seen)[0].path)
	assert.Equal(t, http.MethodPost, (*seen)[0].method)
	assert.EqualValues(t, 3, (*seen)[0].body["patient_id"])
	assert.Equal(t, "09:00", (*seen)[0].body["time"])
	assert.Equal(t, "/api/appointments/44/reschedule", (*seen)[1].path)
	assert.Equal(t, "/api/appointments/44/cancel", (*seen)[2].path)
}

func TestDoJSON_BackendErrorMessage(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusConflict, `{"detail": "Slot already taken"}`))

	err := client.BookAppointment(context.Background(), appointments.BookingRequest{})
	var backendErr *apperrors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusConflict, backendErr.StatusCode)
	assert.Equal(t, "Slot already taken", backendErr.Message)
	assert.Equal(t, "book_appointment", backendErr.Op)
}

func TestDoJSON_NonStringMessageIgnored(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusBadRequest, `{"detail": [{"loc": ["body"], "msg": "bad"}]}`))

	err := client.CancelAppointment(context.Background(), appointments.CancelRequest{AppointmentID: 1})
	var backendErr *apperrors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Empty(t, backendErr.Message)
}

func TestDoJSON_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := NewClient(Options{BaseURL: base, Logger: logging.New("error")})
	require.NoError(t, err)

	err = client.CancelAppointment(context.Background(), appointments.CancelRequest{AppointmentID: 1})
	var netErr *apperrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "cancel_appointment", netErr.Op)
}

func TestDoJSON_DecodeErrorIsBackendError(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, `{"status": 5`))

	_, err := client.SendReminders(context.Background(), reminders.BatchRequest{PatientAppointmentIDs: []int{1}})
	var backendErr *apperrors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Empty(t, backendErr.Message)
}

func TestDoJSON_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var seen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		seen++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{BaseURL: srv.URL, Logger: logging.New("error"), Metrics: metrics.NewConsoleMetrics(reg)})
	require.NoError(t, err)
	require.Error(t, client.BookAppointment(context.Background(), appointments.BookingRequest{}))
	assert.Equal(t, 1, seen)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, family := range families {
		if family.GetName() != "clinic_backend_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["operation"] == "book_appointment" && labels["outcome"] == "backend_error" {
				found = true
				assert.Equal(t, float64(1), m.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestReminders(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/reminders/upcoming":
			respond(http.StatusOK, `{"candidates": [{"appointment_id": 5, "patient_name": "Cy", "phone": "+15550100", "days_until": 2}]}`)(w, r)
		case "/api/reminders/send":
			respond(http.StatusOK, `{"status": "completed", "total_selected": 2, "reminders_sent": 1, "failed": 1}`)(w, r)
		default:
			respond(http.StatusOK, `{"status": "sent", "message": "Reminder sent"}`)(w, r)
		}
	})
	ctx := context.Background()

	candidates, err := client.FetchUpcomingReminderCandidates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "+15550100", candidates[0].PhoneNumber)
	assert.Equal(t, 2, candidates[0].DaysUntil)
	assert.Empty(t, (*seen)[0].query)

	_, err = client.FetchUpcomingReminderCandidates(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "doctor_id=4", (*seen)[1].query)

	batch, err := client.SendReminders(ctx, reminders.BatchRequest{PatientAppointmentIDs: []int{5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.RemindersSent)
	assert.Equal(t, 1, batch.Failed)
	assert.Len(t, (*seen)[2].body["patient_appointment_ids"], 2)

	single, err := client.SendSingleReminder(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Reminder sent", single.Message)
	assert.Equal(t, "/api/reminders/5/send", (*seen)[3].path)
}

func TestMFA(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/mfa/status":
			respond(http.StatusOK, `{"mfa_enabled": true, "method": "totp"}`)(w, r)
		case "/api/mfa/setup":
			respond(http.StatusOK, `{"secret": "ABC", "qr_code_url": "data:image/png;base64,xyz", "provisioning_uri": "otpauth://totp/x"}`)(w, r)
		case "/api/mfa/verify":
			respond(http.StatusOK, `{"backup_codes": ["111", "222"]}`)(w, r)
		default:
			respond(http.StatusNoContent, ``)(w, r)
		}
	})
	ctx := context.Background()

	status, err := client.MFAStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, "totp", status.Method)

	setup, err := client.MFASetup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,xyz", setup.QRCode)
	assert.Equal(t, "otpauth://totp/x", setup.OTPAuthURL)

	verified, err := client.MFAVerify(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, verified.BackupCodes)
	assert.Equal(t, "123456", (*seen)[2].body["code"])

	require.NoError(t, client.MFADisable(ctx, "654321"))
	assert.Equal(t, "/api/mfa/disable", (*seen)[3].path)
}

func TestCalendar(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			respond(http.StatusOK, `{"data": [{"id": "a1", "calendar_type": "gmail", "email": "dr@clinic.test", "status": "active"}]}`)(w, r)
		case r.URL.Path == "/api/calendar/connect":
			respond(http.StatusOK, `{"authorization_url": "https://accounts.example/auth"}`)(w, r)
		default:
			respond(http.StatusNoContent, ``)(w, r)
		}
	})
	ctx := context.Background()

	accounts, err := client.ListCalendarAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, calendar.ProviderGoogle, accounts[0].Provider)
	assert.True(t, accounts[0].Connected)

	result, err := client.ConnectCalendar(ctx, calendar.ConnectRequest{Provider: calendar.ProviderGoogle})
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example/auth", result.AuthURL)

	require.NoError(t, client.DisconnectCalendar(ctx, "a 1"))
	assert.Equal(t, http.MethodDelete, (*seen)[2].method)
	assert.Equal(t, "/api/calendar/accounts/a 1", (*seen)[2].path)
}

func TestPing(t *testing.T) {
	client, seen := newTestClient(t, respond(http.StatusOK, ``))
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, http.MethodHead, (*seen)[0].method)
}

func TestBackendMessageReachesUser(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusBadGateway, `{"message": "upstream down"}`))
	_, err := client.MFAStatus(context.Background())
	assert.Equal(t, "upstream down", apperrors.UserMessage(err, "fallback"))
}
