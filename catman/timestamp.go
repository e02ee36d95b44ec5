package catman

import (
	"math"
	"time"
)

// serialEpochOffset is the serial day number of 1970-01-01 in the
// spreadsheet-style day count used by the instrument.
const serialEpochOffset = 25569

// SerialToTime converts a serial day count (days since 1899-12-30, fractional
// part is the time of day) to UTC calendar time.
func SerialToTime(serial float64) time.Time {
	secs := (serial - serialEpochOffset) * 86400
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// TimeToSerial is the inverse of SerialToTime.
func TimeToSerial(t time.Time) float64 {
	return float64(t.UnixNano())/1e9/86400 + serialEpochOffset
}
