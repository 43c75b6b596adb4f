package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
)

func TestParseAppointmentTime(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		tz       string
		wantDate string
		wantHour int
		wantMin  int
		wantErr  bool
	}{
		{
			name:     "RFC3339 with offset -04:00",
			raw:      "2024-06-10T14:00:00-04:00",
			tz:       "America/New_York",
			wantDate: "2024-06-10",
			wantHour: 14,
		},
		{
			name:     "RFC3339 UTC converts to ET",
			raw:      "2024-06-11T02:30:00Z",
			tz:       "America/New_York",
			wantDate: "2024-06-10", // 02:30 UTC = 22:30 EDT the previous day
			wantHour: 22,
			wantMin:  30,
		},
		{
			name:     "fractional seconds",
			raw:      "2024-06-10T09:00:00.123456Z",
			tz:       "UTC",
			wantDate: "2024-06-10",
			wantHour: 9,
		},
		{
			name:     "offset without colon",
			raw:      "2024-06-10T09:00:00+0000",
			tz:       "America/New_York",
			wantDate: "2024-06-10",
			wantHour: 5,
		},
		{
			name:     "naive datetime is clinic local",
			raw:      "2024-06-10T09:15:00",
			tz:       "America/Chicago",
			wantDate: "2024-06-10",
			wantHour: 9,
			wantMin:  15,
		},
		{
			name:     "naive with space and no seconds",
			raw:      "2024-06-10 16:45",
			tz:       "America/New_York",
			wantDate: "2024-06-10",
			wantHour: 16,
			wantMin:  45,
		},
		{name: "garbage", raw: "not-a-date", tz: "America/New_York", wantErr: true},
		{name: "empty", raw: "  ", tz: "America/New_York", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := ClinicLocation(tt.tz)
			got, err := ParseAppointmentTime(tt.raw, loc)
			if tt.wantErr {
				var parseErr *apperrors.ParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d := got.Format(time.DateOnly); d != tt.wantDate {
				t.Errorf("date = %s, want %s", d, tt.wantDate)
			}
			if got.Hour() != tt.wantHour || got.Minute() != tt.wantMin {
				t.Errorf("got %d:%02d, want %d:%02d (full: %s)", got.Hour(), got.Minute(), tt.wantHour, tt.wantMin, got)
			}
		})
	}
}

func TestClinicLocation(t *testing.T) {
	if loc := ClinicLocation("America/New_York"); loc.String() != "America/New_York" {
		t.Errorf("got %s, want America/New_York", loc)
	}
	if loc := ClinicLocation(""); loc != time.UTC {
		t.Errorf("empty timezone should return UTC, got %s", loc)
	}
	if loc := ClinicLocation("Invalid/Zone"); loc != time.UTC {
		t.Errorf("invalid timezone should return UTC, got %s", loc)
	}
}

func TestParseDate(t *testing.T) {
	loc := ClinicLocation("America/New_York")
	d, err := ParseDate("2024-06-10", loc)
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d.Hour() != 0 || d.Location() != loc {
		t.Fatalf("ParseDate() = %s", d)
	}
	if _, err := ParseDate("06/10/2024", loc); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc := ClinicLocation("America/New_York")
	before := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)
	after := time.Date(2024, 3, 10, 23, 30, 0, 0, loc) // 23h later in wall terms
	if got := DaysBetween(before, after, loc); got != 1 {
		t.Fatalf("DaysBetween across spring-forward = %d, want 1", got)
	}
}
