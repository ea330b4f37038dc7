package redisx

import "time"

const (
	// Pass mutual exclusion: lease:pass:{post_id} -> token
	KeyPassLease = "lease:pass:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPassLease = 2 * time.Minute
	TTLDedup     = 48 * time.Hour
)
