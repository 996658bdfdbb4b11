package leveling

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"levelbot/internal/storage"
)

var monthDayPattern = regexp.MustCompile(`^\d{2}-\d{2}$`)

type MonthDay struct {
	Month time.Month
	Day   int
}

func (d MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)
}

// ParseMonthDay parses a zero-padded MM-DD string and checks it is a real date in year.
func ParseMonthDay(value string, year int) (MonthDay, error) {
	if !monthDayPattern.MatchString(value) {
		return MonthDay{}, ErrInvalidDateFormat
	}
	month, _ := strconv.Atoi(value[:2])
	day, _ := strconv.Atoi(value[3:])
	if month < 1 || month > 12 || day < 1 {
		return MonthDay{}, ErrInvalidDate
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Month() != time.Month(month) || date.Day() != day {
		return MonthDay{}, ErrInvalidDate
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}

type Multiplier struct {
	ID        string
	Name      string
	Factor    int
	Start     MonthDay
	End       MonthDay
	CreatedAt time.Time
}

// ActiveAt reports whether now falls inside the yearly window. Both the window
// opening this year and the one opening last year are checked so a window that
// wraps New Year stays active in January.
func (m Multiplier) ActiveAt(now time.Time) bool {
	for _, year := range []int{now.Year(), now.Year() - 1} {
		start, end := m.window(year, now.Location())
		if !now.Before(start) && now.Before(end) {
			return true
		}
	}
	return false
}

// window returns [start, end) where end is midnight after the last day.
func (m Multiplier) window(year int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, m.Start.Month, m.Start.Day, 0, 0, 0, 0, loc)
	end := time.Date(year, m.End.Month, m.End.Day, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !end.After(start) {
		end = time.Date(year+1, m.End.Month, m.End.Day, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}
	return start, end
}

func multiplierFromRecord(record storage.Multiplier) (Multiplier, error) {
	start, err := parseStored(record.Start)
	if err != nil {
		return Multiplier{}, fmt.Errorf("multiplier %s start: %w", record.Name, err)
	}
	end, err := parseStored(record.End)
	if err != nil {
		return Multiplier{}, fmt.Errorf("multiplier %s end: %w", record.Name, err)
	}
	return Multiplier{
		ID:        record.ID,
		Name:      record.Name,
		Factor:    record.Factor,
		Start:     start,
		End:       end,
		CreatedAt: record.CreatedAt,
	}, nil
}

// parseStored accepts Feb 29 regardless of the current year.
func parseStored(value string) (MonthDay, error) {
	return ParseMonthDay(value, 2000)
}
