package utils

import "time"

// Timestamps are stored as RFC3339 strings in DynamoDB so they sort
// lexicographically. Always written in UTC so instances in different
// zones produce comparable keys.

// NowRFC3339 returns the current UTC time as an RFC3339 string
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ParseRFC3339 parses a stored RFC3339 timestamp
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
