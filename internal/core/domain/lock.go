package domain

import "time"

// LockHolder describes the build holding the cache lock.
type LockHolder struct {
	Owner string    `json:"owner" msgpack:"owner"`
	PID   int       `json:"pid" msgpack:"pid"`
	Host  string    `json:"host" msgpack:"host"`
	Since time.Time `json:"since" msgpack:"since"`
}
