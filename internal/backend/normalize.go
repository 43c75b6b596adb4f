package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/appointments"
	"github.com/wolfman30/clinic-console/internal/calendar"
	"github.com/wolfman30/clinic-console/internal/mfa"
	"github.com/wolfman30/clinic-console/internal/reminders"
)

// listKeys are the wrapper fields list endpoints have been seen to use.
var listKeys = []string{"appointments", "candidates", "accounts", "availability", "data", "results", "items"}

// unwrapList accepts a bare JSON array or an object wrapping one under a
// known key and returns the array elements. An object without a known list
// key is an error, so an error envelope never reads as an empty list.
func unwrapList(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	case '{':
	default:
		return nil, fmt.Errorf("decode list: unexpected %q payload", raw[:1])
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode list wrapper: %w", err)
	}
	for _, key := range listKeys {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil, nil
		}
		if inner[0] != '[' && inner[0] != '{' {
			return nil, fmt.Errorf("decode list wrapper: %q is not a list", key)
		}
		return unwrapList(inner)
	}
	return nil, fmt.Errorf("decode list wrapper: no list field in %d keys", len(wrapper))
}

// fields is a decoded JSON object with lenient accessors.
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// str returns the first non-empty string (or number rendered as string) among keys.
func (f fields) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// num returns the first integer among keys. Numeric strings are accepted.
func (f fields) num(keys ...string) int {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
		var fl float64
		if err := json.Unmarshal(raw, &fl); err == nil {
			return int(fl)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return v
			}
		}
	}
	return 0
}

func (f fields) optNum(keys ...string) *int {
	for _, key := range keys {
		if raw, ok := f[key]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			v := f.num(key)
			return &v
		}
	}
	return nil
}

// boolean accepts true/false, 0/1 and "true"/"yes".
func (f fields) boolean(keys ...string) (bool, bool) {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, true
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n != 0, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "yes", "1":
				return true, true
			case "false", "no", "0":
				return false, true
			}
		}
	}
	return false, false
}

func (f fields) list(key string) []string {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (f fields) timestamp(keys ...string) time.Time {
	s := f.str(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func normalizeAppointment(raw json.RawMessage) (appointments.Appointment, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return appointments.Appointment{}, err
	}
	return appointments.Appointment{
		AppointmentID:   f.num("appointment_id", "id"),
		PatientID:       f.num("patient_id"),
		PatientName:     f.str("patient_name", "patient"),
		DoctorID:        f.num("doctor_id"),
		DoctorName:      f.str("doctor_name", "doctor"),
		ClinicID:        f.num("clinic_id"),
		AppointmentTime: f.str("appointment_time", "appointment_datetime", "start_time"),
		Status:          strings.ToLower(f.str("status")),
		Duration:        f.optNum("duration", "duration_minutes"),
		CalendarEventID: f.str("calendar_event_id", "event_id"),
		ReasonForVisit:  f.str("reason_for_visit", "reason"),
		AppointmentNote: f.str("appointment_note", "note", "notes"),
	}, nil
}

func normalizeAppointments(raw json.RawMessage) ([]appointments.Appointment, error) {
	items, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]appointments.Appointment, 0, len(items))
	for _, item := range items {
		a, err := normalizeAppointment(item)
		if err != nil {
			return nil, fmt.Errorf("decode appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func normalizeCandidates(raw json.RawMessage) ([]reminders.Candidate, error) {
	items, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]reminders.Candidate, 0, len(items))
	for _, item := range items {
		f, err := decodeFields(item)
		if err != nil {
			return nil, fmt.Errorf("decode reminder candidate: %w", err)
		}
		out = append(out, reminders.Candidate{
			AppointmentID:   f.num("appointment_id", "id"),
			PatientID:       f.num("patient_id"),
			PatientName:     f.str("patient_name"),
			DoctorName:      f.str("doctor_name"),
			AppointmentTime: f.str("appointment_time", "appointment_datetime"),
			PhoneNumber:     f.str("phone_number", "phone"),
			DaysUntil:       f.num("days_until"),
		})
	}
	return out, nil
}

func normalizeMFASetup(raw json.RawMessage) (mfa.Setup, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return mfa.Setup{}, err
	}
	return mfa.Setup{
		Secret:     f.str("secret", "secret_key"),
		QRCode:     f.str("qr_code", "qr_code_url", "qrCode", "qr_code_image"),
		OTPAuthURL: f.str("otpauth_url", "provisioning_uri", "uri"),
	}, nil
}

func normalizeMFAStatus(raw json.RawMessage) (mfa.Status, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return mfa.Status{}, err
	}
	enabled, _ := f.boolean("enabled", "mfa_enabled", "is_enabled")
	return mfa.Status{Enabled: enabled, Method: f.str("method", "mfa_method")}, nil
}

func normalizeCalendarAccounts(raw json.RawMessage) ([]calendar.Account, error) {
	items, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Account, 0, len(items))
	for _, item := range items {
		f, err := decodeFields(item)
		if err != nil {
			return nil, fmt.Errorf("decode calendar account: %w", err)
		}
		provider, ok := calendar.ParseProvider(f.str("provider", "calendar_type", "type"))
		if !ok {
			provider = calendar.Provider(strings.ToLower(f.str("provider", "calendar_type", "type")))
		}
		connected, known := f.boolean("connected", "is_connected", "is_active")
		if !known {
			switch strings.ToLower(f.str("status")) {
			case "connected", "active":
				connected = true
			}
		}
		out = append(out, calendar.Account{
			ID:        f.str("id", "account_id"),
			Provider:  provider,
			Email:     f.str("email", "account_email", "calendar_email"),
			Connected: connected,
			UpdatedAt: f.timestamp("updated_at", "connected_at", "created_at"),
		})
	}
	return out, nil
}
