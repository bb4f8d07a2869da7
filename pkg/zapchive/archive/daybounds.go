// Package archive – daybounds.go maps calendar dates to UTC timestamp ranges.
package archive

import (
	"fmt"
	"time"
)

// dayMillis is the fixed window length returned by ResolveDayRangeUTC.
const dayMillis = 24 * 60 * 60 * 1000

// ResolveDayRangeUTC maps a YYYY-MM-DD calendar date in the given timezone to
// a half-open [startUTC, endUTC) range in epoch milliseconds. The start is the
// UTC instant of civil midnight in that timezone, which handles non-whole-hour
// offsets and date boundaries away from UTC midnight. The window is always
// exactly 24 hours; on a DST transition day it will not match the local
// calendar day exactly.
func ResolveDayRangeUTC(date string, loc *time.Location) (startUTC, endUTC int64, err error) {
	if loc == nil {
		loc = time.UTC
	}
	midnight, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := midnight.UnixMilli()
	return start, start + dayMillis, nil
}
