package types

import (
	"strconv"
	"time"
)

// Size units for formatting
const (
	_        = iota
	KB int64 = 1 << (10 * iota)
	MB
	GB
	TB
	PB
)

// byteUnits maps size thresholds to their unit suffixes for efficient lookup
var byteUnits = []struct {
	threshold int64
	suffix    string
	divisor   float64
}{
	{PB, " PB", float64(PB)},
	{TB, " TB", float64(TB)},
	{GB, " GB", float64(GB)},
	{MB, " MB", float64(MB)},
	{KB, " KB", float64(KB)},
}

// FormatBytes formats bytes into human-readable format (KB, MB, GB, etc.)
func FormatBytes(bytes uint64) string {
	if bytes < 1024 {
		return strconv.FormatUint(bytes, 10) + " B"
	}

	b := int64(bytes)
	for _, unit := range byteUnits {
		if b >= unit.threshold {
			value := float64(bytes) / unit.divisor
			return formatFloat(value, 1) + unit.suffix
		}
	}

	return strconv.FormatUint(bytes, 10) + " B"
}

// FormatSeconds renders a duration as decimal seconds, e.g. "12.500s".
func FormatSeconds(d time.Duration) string {
	return formatFloat(d.Seconds(), 3) + "s"
}

// Percent returns part/whole as a percentage, 0 when whole is not positive.
func Percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func formatFloat(value float64, decimals int) string {
	return strconv.FormatFloat(value, 'f', decimals, 64)
}
