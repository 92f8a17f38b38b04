package domain

// Namespace partitions cache keys. Keys are unique within a namespace.
type Namespace string

const (
	// NamespaceValues holds target values.
	NamespaceValues Namespace = "values"
	// NamespaceFingerprints holds target fingerprints.
	NamespaceFingerprints Namespace = "fingerprints"
	// NamespaceImports holds memoized import values.
	NamespaceImports Namespace = "imports"
	// NamespaceSession holds session snapshots.
	NamespaceSession Namespace = "session"
	// NamespaceProgress holds the last known status of every target.
	NamespaceProgress Namespace = "progress"
	// NamespaceLock describes the holder of the cache lock.
	NamespaceLock Namespace = "lock"
)

// Namespaces lists every namespace in dump order.
var Namespaces = []Namespace{
	NamespaceValues,
	NamespaceFingerprints,
	NamespaceImports,
	NamespaceSession,
	NamespaceProgress,
	NamespaceLock,
}

func (n Namespace) String() string {
	return string(n)
}

// ParseNamespaces converts names to namespaces, keeping only known ones.
// An empty input selects every namespace.
func ParseNamespaces(names []string) []Namespace {
	if len(names) == 0 {
		return Namespaces
	}
	var res []Namespace
	for _, name := range names {
		for _, ns := range Namespaces {
			if string(ns) == name {
				res = append(res, ns)
			}
		}
	}
	return res
}
