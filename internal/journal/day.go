package journal

import (
	"fmt"
	"time"
)

// DateKey identifies one calendar date in the journal, formatted as
// YYYY-MM-DD. One workout and one nutrition record exist per user per key.
type DateKey string

const dateKeyLayout = "2006-01-02"

func NewDateKey(t time.Time) DateKey {
	return DateKey(t.UTC().Format(dateKeyLayout))
}

func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date key [%s]: %w", s, err)
	}
	return NewDateKey(t), nil
}

func (d DateKey) String() string {
	return string(d)
}

func (d DateKey) Time() (time.Time, error) {
	return time.Parse(dateKeyLayout, string(d))
}
