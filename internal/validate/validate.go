// Package validate holds the pure input validators shared by every service.
package validate

import (
	"regexp"
	"strings"
)

var (
	barcodeRe = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	serialRe  = regexp.MustCompile(`^[A-Za-z0-9]{17}$`)
	emailRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// IsBarcode reports whether s is a legacy 8-character label identifier.
// Printed labels carry alphanumeric codes ("ABC12345"), not only digits.
func IsBarcode(s string) bool {
	return barcodeRe.MatchString(s)
}

// IsSerial reports whether s is a 17-character alphanumeric vehicle serial.
// Case-insensitive.
func IsSerial(s string) bool {
	return serialRe.MatchString(s)
}

// IsIdentifier accepts either identifier format.
func IsIdentifier(s string) bool {
	return IsBarcode(s) || IsSerial(s)
}

// NormalizeSerial upper-cases a serial for storage and comparison.
func NormalizeSerial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsMonth reports whether m is a calendar month number.
func IsMonth(m int) bool {
	return m >= 1 && m <= 12
}

// IsYear bounds year to a sane range for inventory sessions.
func IsYear(y int) bool {
	return y >= 2000 && y <= 2100
}

// IsEmail performs a shape check, not deliverability.
func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}
