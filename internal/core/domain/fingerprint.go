package domain

// FileStamp is the observed state of a declared file dependency.
type FileStamp struct {
	Hash    string `msgpack:"hash"`
	ModTime int64  `msgpack:"mtime"`
	Size    int64  `msgpack:"size"`
}

// Fingerprint summarizes everything whose change should invalidate a target's value.
type Fingerprint struct {
	Command      string               `msgpack:"command"`
	Dependencies map[string]string    `msgpack:"dependencies"`
	Files        map[string]FileStamp `msgpack:"files"`
	MapOver      string               `msgpack:"map_over,omitempty"`
	// Element is the hash of the mapped element for dynamic sub-targets.
	Element string `msgpack:"element,omitempty"`
	// Value is the hash of the value the fingerprint was recorded for.
	Value string `msgpack:"value"`
}
