package transport

import "time"

func durationMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
