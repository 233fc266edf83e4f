package timex

import "time"

// NowMs is the event timestamp used on the bus: Unix milliseconds.
func NowMs() int64 { return time.Now().UnixMilli() }
