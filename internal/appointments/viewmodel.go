package appointments

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/schedule"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// LoadState distinguishes "nothing fetched yet", "fetched" and "could not fetch".
type LoadState string

const (
	LoadIdle   LoadState = "idle"
	LoadLoaded LoadState = "loaded"
	LoadFailed LoadState = "load_failed"
)

// ScreenState is the part of a view-model that survives between requests.
type ScreenState struct {
	Filter    schedule.Bucket `json:"filter"`
	Search    string          `json:"search"`
	WeekStart string          `json:"week_start"`
}

// ViewModelConfig wires a ViewModel.
type ViewModelConfig struct {
	Fetcher  Fetcher
	Scope    tenancy.Scope
	Location *time.Location
	Now      time.Time
	Logger   *logging.Logger
}

// ViewModel holds one screen's fetched appointments and its filter state.
// It never merges fetches: each successful Refresh replaces the list.
type ViewModel struct {
	fetcher Fetcher
	scope   tenancy.Scope
	loc     *time.Location
	logger  *logging.Logger

	mu        sync.RWMutex
	raw       []Appointment
	filter    schedule.Bucket
	search    string
	weekStart time.Time
	state     LoadState
	lastErr   error
}

// NewViewModel creates an idle view-model whose week window contains cfg.Now.
func NewViewModel(cfg ViewModelConfig) *ViewModel {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &ViewModel{
		fetcher:   cfg.Fetcher,
		scope:     cfg.Scope,
		loc:       loc,
		logger:    logger,
		filter:    schedule.BucketAll,
		weekStart: schedule.WeekStart(now, loc),
		state:     LoadIdle,
	}
}

// Refresh fetches the list for the view-model's scope. On failure the last
// good list is kept and the state becomes LoadFailed.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	if vm.fetcher == nil {
		return fmt.Errorf("appointments: refresh: fetcher not configured")
	}

	list, err := vm.fetcher.FetchAppointments(ctx, vm.scope)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.state = LoadFailed
		vm.lastErr = err
		vm.logger.Warn("appointments: refresh failed", "role", vm.scope.Role, "clinic_id", vm.scope.ClinicID, "doctor_id", vm.scope.DoctorID, "error", err)
		return fmt.Errorf("appointments: refresh: %w", err)
	}
	vm.raw = slices.Clone(list)
	vm.state = LoadLoaded
	vm.lastErr = nil
	return nil
}

// Derive returns the appointments visible under the current filter and
// search, ordered for display. Appointments with an unparsable time are never
// shown.
func (vm *ViewModel) Derive(now time.Time) []Appointment {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(vm.search))

	type timed struct {
		appt    Appointment
		instant schedule.Instant
	}
	visible := make([]timed, 0, len(vm.raw))
	for _, appt := range vm.raw {
		instant := appt.Instant(vm.loc)
		if !instant.Valid {
			continue
		}
		if !vm.inFilter(instant.Time, now) {
			continue
		}
		if needle != "" && !matchesSearch(appt, needle) {
			continue
		}
		visible = append(visible, timed{appt: appt, instant: instant})
	}

	schedule.SortStable(visible, func(t timed) schedule.Instant { return t.instant }, now)

	out := make([]Appointment, len(visible))
	for i, t := range visible {
		out[i] = t.appt
	}
	return out
}

func (vm *ViewModel) inFilter(t, now time.Time) bool {
	if vm.filter == schedule.BucketWeek {
		return schedule.InWeekWindow(t, vm.weekStart, vm.loc)
	}
	return schedule.Matches(vm.filter, t, now, vm.loc)
}

func matchesSearch(appt Appointment, needle string) bool {
	return strings.Contains(strings.ToLower(appt.PatientName), needle) ||
		strings.Contains(strings.ToLower(appt.DoctorName), needle) ||
		strings.Contains(strings.ToLower(appt.Status), needle)
}

// SetFilter changes the active bucket.
func (vm *ViewModel) SetFilter(b schedule.Bucket) {
	vm.mu.Lock()
	vm.filter = b
	vm.mu.Unlock()
}

// SetSearch changes the search text.
func (vm *ViewModel) SetSearch(text string) {
	vm.mu.Lock()
	vm.search = text
	vm.mu.Unlock()
}

// NextWeek moves the week window forward seven days. It does not fetch.
func (vm *ViewModel) NextWeek() { vm.shiftWeek(7) }

// PrevWeek moves the week window back seven days. It does not fetch.
func (vm *ViewModel) PrevWeek() { vm.shiftWeek(-7) }

func (vm *ViewModel) shiftWeek(days int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	y, m, d := vm.weekStart.Date()
	vm.weekStart = time.Date(y, m, d+days, 0, 0, 0, 0, vm.loc)
}

func (vm *ViewModel) Filter() schedule.Bucket {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

func (vm *ViewModel) Search() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.search
}

// WeekWindow returns the first and last civil day of the week window.
func (vm *ViewModel) WeekWindow() (start, end time.Time) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	y, m, d := vm.weekStart.Date()
	return vm.weekStart, time.Date(y, m, d+6, 0, 0, 0, 0, vm.loc)
}

// State returns the load state and, for LoadFailed, the fetch error.
func (vm *ViewModel) State() (LoadState, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state, vm.lastErr
}

// Appointments returns a copy of the raw fetched list.
func (vm *ViewModel) Appointments() []Appointment {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.raw)
}

// Snapshot captures filter, search and week window.
func (vm *ViewModel) Snapshot() ScreenState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return ScreenState{
		Filter:    vm.filter,
		Search:    vm.search,
		WeekStart: vm.weekStart.Format(time.DateOnly),
	}
}

// Restore applies a previously captured ScreenState. The week start is
// snapped to the Monday of its week.
func (vm *ViewModel) Restore(state ScreenState) error {
	filter, err := schedule.ParseBucket(string(state.Filter))
	if err != nil {
		return err
	}

	var weekStart time.Time
	if strings.TrimSpace(state.WeekStart) != "" {
		day, err := schedule.ParseDate(state.WeekStart, vm.loc)
		if err != nil {
			return apperrors.Validation("week_start", "Invalid week start")
		}
		weekStart = schedule.WeekStart(day, vm.loc)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = filter
	vm.search = state.Search
	if !weekStart.IsZero() {
		vm.weekStart = weekStart
	}
	return nil
}
