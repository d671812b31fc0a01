package sdfat

import (
	"time"
)

// ParseDate decodes a FAT date stamp:
//
//	bits 0-4:  day of month, 1-31
//	bits 5-8:  month, 1-12
//	bits 9-15: years since 1980
//
// A day or month of 0 is invalid and returns time.Time{}, so IsZero() can be
// used to detect it. Months above 12 roll over into the next year.
func ParseDate(input uint16) time.Time {
	day := int(input & 0x1F)
	month := int(input & 0x1E0 >> 5)
	year := 1980 + int(input&0xFE00>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ParseTime decodes a FAT time stamp with a granularity of 2 seconds:
//
//	bits 0-4:   seconds / 2, 0-29
//	bits 5-10:  minutes, 0-59
//	bits 11-15: hours, 0-23
//
// The result is on January 1, year 1. Out of range values are clamped to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := int(input & 0x7E0 >> 5)
	hours := int(input & 0xF800 >> 11)

	result := time.Date(1, 1, 1, hours, minutes, seconds, 0, time.UTC)
	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// ParseDateTime combines a date and a time stamp. It returns time.Time{} if
// the date is invalid.
func ParseDateTime(date, clock uint16) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}

	t := ParseTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
