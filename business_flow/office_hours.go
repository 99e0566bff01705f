package businessflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
)

// OfficeHoursResult is the outcome of one office-hours evaluation. Configured
// is false when the organization has no timezone or no office-hours map at
// all; callers decide whether unconfigured means "always call" or "never
// call" (the dispatch cycle treats unconfigured as open).
type OfficeHoursResult struct {
	WithinHours bool
	Configured  bool
	Reason      string
	CheckedAt   time.Time
}

const (
	fullyOpenEndMinutes = 23*60 + 59
)

// EvaluateOfficeHours decides whether at falls within the organization's
// calling window. Pure function, never returns an error: configuration
// problems (missing timezone, unparseable window) are reported as results.
//
// Sentinels, checked before the general comparison:
//   - start == end == 00:00 means the day is closed
//   - start == 00:00 and end == 23:59 means the day is open 24 hours
//
// The general window comparison is inclusive on both ends.
func EvaluateOfficeHours(org *models.Organization, at time.Time) OfficeHoursResult {
	checkedAt := at.UTC()

	if org.Timezone == "" || len(org.OfficeHours) == 0 {
		return OfficeHoursResult{
			WithinHours: true,
			Configured:  false,
			Reason:      "office hours not configured",
			CheckedAt:   checkedAt,
		}
	}

	loc, err := time.LoadLocation(org.Timezone)
	if err != nil {
		return OfficeHoursResult{
			WithinHours: true,
			Configured:  false,
			Reason:      fmt.Sprintf("unknown timezone %q", org.Timezone),
			CheckedAt:   checkedAt,
		}
	}

	local := at.In(loc)
	weekday := strings.ToLower(local.Weekday().String())

	window, ok := org.OfficeHours[weekday]
	if !ok {
		return OfficeHoursResult{
			WithinHours: false,
			Configured:  true,
			Reason:      fmt.Sprintf("no hours configured for %s", weekday),
			CheckedAt:   checkedAt,
		}
	}

	startMinutes, err := parseClockMinutes(window.Start)
	if err != nil {
		return OfficeHoursResult{
			WithinHours: false,
			Configured:  true,
			Reason:      fmt.Sprintf("invalid start time %q for %s", window.Start, weekday),
			CheckedAt:   checkedAt,
		}
	}
	endMinutes, err := parseClockMinutes(window.End)
	if err != nil {
		return OfficeHoursResult{
			WithinHours: false,
			Configured:  true,
			Reason:      fmt.Sprintf("invalid end time %q for %s", window.End, weekday),
			CheckedAt:   checkedAt,
		}
	}

	if startMinutes == 0 && endMinutes == 0 {
		return OfficeHoursResult{
			WithinHours: false,
			Configured:  true,
			Reason:      fmt.Sprintf("%s is closed all day", weekday),
			CheckedAt:   checkedAt,
		}
	}
	if startMinutes == 0 && endMinutes == fullyOpenEndMinutes {
		return OfficeHoursResult{
			WithinHours: true,
			Configured:  true,
			Reason:      fmt.Sprintf("%s is open 24 hours", weekday),
			CheckedAt:   checkedAt,
		}
	}

	nowMinutes := local.Hour()*60 + local.Minute()
	if nowMinutes >= startMinutes && nowMinutes <= endMinutes {
		return OfficeHoursResult{
			WithinHours: true,
			Configured:  true,
			Reason:      fmt.Sprintf("within %s hours %s-%s", weekday, window.Start, window.End),
			CheckedAt:   checkedAt,
		}
	}

	return OfficeHoursResult{
		WithinHours: false,
		Configured:  true,
		Reason:      fmt.Sprintf("outside %s hours %s-%s", weekday, window.Start, window.End),
		CheckedAt:   checkedAt,
	}
}

// parseClockMinutes parses a 24h "HH:MM" string into minutes since midnight.
func parseClockMinutes(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", clock)
	}

	return hour*60 + minute, nil
}
