package quandl

import (
	"fmt"
	"time"
)

// DateRange is an inclusive calendar date range
type DateRange struct {
	From time.Time
	To   time.Time
}

// DateRangeError reports an unusable from/to pair. Callers decide whether to
// fall back to defaults or abort.
type DateRangeError struct {
	From, To string
	Err      error
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("invalid date range %q..%q (format yyyy-mm-dd): %v", e.From, e.To, e.Err)
}

func (e *DateRangeError) Unwrap() error {
	return e.Err
}

// ParseDateRange validates two yyyy-mm-dd dates
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, &DateRangeError{From: from, To: to, Err: err}
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, &DateRangeError{From: from, To: to, Err: err}
	}
	if t.Before(f) {
		return DateRange{}, &DateRangeError{From: from, To: to, Err: fmt.Errorf("end date before start date")}
	}
	return DateRange{From: f, To: t}, nil
}

// Contains reports whether r covers other entirely
func (r DateRange) Contains(other DateRange) bool {
	return !other.From.Before(r.From) && !other.To.After(r.To)
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}
