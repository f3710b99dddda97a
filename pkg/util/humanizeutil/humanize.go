// Package humanizeutil formats byte counts for logging, the way
// the storage layer reports SST and write-buffer sizes.
package humanizeutil

import "github.com/dustin/go-humanize"

// IBytes formats n using binary (IEC) units, e.g. "4.0 MiB".
func IBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// ParseBytes parses a human string like "64MiB" back into a byte count.
func ParseBytes(s string) (int64, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}
