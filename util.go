package statsig

import (
	"errors"
	"fmt"
	"time"
)

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func defaultDuration(v, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}

func defaultInt(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func toError(err interface{}) error {
	switch e := err.(type) {
	case error:
		return e
	case string:
		return errors.New(e)
	default:
		return fmt.Errorf("%+v", err)
	}
}

func intAbs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Allows for overriding in tests
var now = time.Now

func getUnixMilli() int64 {
	return now().UnixNano() / int64(time.Millisecond)
}
