// Package availability turns a doctor's availability payload into the slot
// labels offered by the schedule and reschedule pickers.
package availability

// TimeSlots splits a day's offerable start times into halves. Labels are
// 12-hour strings such as "9:00 AM", already chronological within each half.
type TimeSlots struct {
	Morning   []string `json:"morning"`
	Afternoon []string `json:"afternoon"`
}

// Day is one calendar day of availability. It is fetched fresh for every
// date selection and never cached.
type Day struct {
	Date        string    `json:"date"`
	IsAvailable bool      `json:"is_available"`
	TimeSlots   TimeSlots `json:"time_slots"`
}

// Query scopes an availability fetch. Dates are YYYY-MM-DD, inclusive.
type Query struct {
	ClinicID  int
	DoctorID  int
	StartDate string
	EndDate   string
}
