package redisx

import (
	"fmt"
	"time"
)

const (
	// Dedup event processing: dedup:{scope}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var TTLDedup = 48 * time.Hour

func DedupKey(scope, id string) string { return fmt.Sprintf(KeyDedup, scope, id) }
