package clearly

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Fixed width so that stored values compare correctly as plain text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp is a point in time persisted as UTC text.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp, dropping the monotonic reading and location.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Round(0)}
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC().Format(timestampLayout), nil
}

func (t *Timestamp) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", src)
	}

	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Fall back for values written by hand or by sqlite itself.
		parsed, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return fmt.Errorf("error parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()

	return nil
}
