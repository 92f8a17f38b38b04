package domain

import "time"

// Session is the snapshot recorded after a build.
type Session struct {
	ID        string    `msgpack:"id"`
	StartedAt time.Time `msgpack:"started_at"`
	EndedAt   time.Time `msgpack:"ended_at"`
	Host      string    `msgpack:"host"`
	GoVersion string    `msgpack:"go_version"`
	Version   string    `msgpack:"version"`
	Root      string    `msgpack:"root"`
	Strategy  string    `msgpack:"strategy"`
	Jobs      int       `msgpack:"jobs"`
	Succeeded []string  `msgpack:"succeeded"`
	Failed    []string  `msgpack:"failed"`
	Skipped   []string  `msgpack:"skipped"`
	Cancelled []string  `msgpack:"cancelled"`
	UpToDate  []string  `msgpack:"up_to_date"`
}
