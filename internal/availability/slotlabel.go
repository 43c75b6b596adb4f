package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-console/internal/apperrors"
)

var slotLabelPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AP])\.?M\.?$`)

// ParseSlotLabel converts a 12-hour label ("9:00 AM", "12:30 PM", "3 PM") to
// minutes since midnight. 12 AM is midnight and 12 PM is noon.
func ParseSlotLabel(label string) (int, error) {
	m := slotLabelPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(label)))
	if m == nil {
		return 0, &apperrors.ParseError{Kind: "slot label", Input: label}
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, &apperrors.ParseError{Kind: "slot label", Input: label}
	}

	if hour == 12 {
		hour = 0
	}
	if m[3] == "P" {
		hour += 12
	}
	return hour*60 + minute, nil
}

// To24Hour converts a slot label to the backend's HH:mm form.
func To24Hour(label string) (string, error) {
	minutes, err := ParseSlotLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}
