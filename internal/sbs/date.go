// internal/sbs/date.go
package sbs

import "time"

// ManufactureDate decodes the packed SBS date:
// bits 0-4 day, bits 5-8 month, bits 9-15 years since 1980.
// It returns the zero time for an unset or out-of-range value.
func ManufactureDate(raw uint16) time.Time {
	day := int(raw & 0x1F)
	month := int((raw >> 5) & 0x0F)
	year := 1980 + int(raw>>9)
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
