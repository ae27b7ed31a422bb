package snowflake

import (
	"fmt"
	"strconv"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
)

// Epoch is the first millisecond of 2015, the zero point of every platform id
const Epoch int64 = 1420070400000

// Time returns when the entity behind id was created
func Time(id string) (time.Time, error) {
	value, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("snowflake %q: %w", id, errs.ErrInvalidArgument)
	}
	return time.UnixMilli(int64(value>>22) + Epoch), nil
}

// IsSnowflake reports whether s looks like an id: digits only
func IsSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromTime builds the smallest id created at t, handy for pagination and tests
func FromTime(t time.Time) string {
	ms := t.UnixMilli() - Epoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatUint(uint64(ms)<<22, 10)
}
