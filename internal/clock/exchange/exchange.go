// Package exchange provides a clock pinned to the exchange's time zone,
// so calendar arithmetic on "today" always happens on Jakarta dates.
package exchange

import (
	"fmt"
	"time"
)

// Zone is the IDX trading calendar time zone.
const Zone = "Asia/Jakarta"

// Clock implements etl.Clock in the exchange's local time.
type Clock struct {
	loc *time.Location
}

// New loads the exchange time zone.
func New() (*Clock, error) {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		return nil, fmt.Errorf("load exchange time zone: %w", err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current time in the exchange's zone.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
