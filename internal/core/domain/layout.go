package domain

import "path/filepath"

const (
	// MallardDirName is the name of the internal workspace directory.
	MallardDirName = ".mallard"

	// CacheDirName is the name of the content addressable cache directory.
	CacheDirName = "cache"

	// BlobsDirName holds serialized values keyed by their hash.
	BlobsDirName = "blobs"

	// KeysDirName holds one record per namespaced key.
	KeysDirName = "keys"

	// LockFileName is the name of the cache lock flag.
	LockFileName = "lock"

	// PlanFileName is the name of the YAML plan file.
	PlanFileName = "mallard.yaml"

	// PlanFileNameAlt is the alternative extension of the YAML plan file.
	PlanFileNameAlt = "mallard.yml"

	// PlanFileNameHCL is the name of the HCL plan file.
	PlanFileNameHCL = "mallard.hcl"

	// MetricsFileName is the default name of the metrics text file.
	MetricsFileName = "metrics.prom"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultMallardPath returns the default root directory for mallard metadata.
func DefaultMallardPath() string {
	return MallardDirName
}

// DefaultCachePath returns the default path for the cache.
// It joins .mallard and cache.
func DefaultCachePath() string {
	return filepath.Join(MallardDirName, CacheDirName)
}

// DefaultMetricsPath returns the default path for the metrics text file.
func DefaultMetricsPath() string {
	return filepath.Join(MallardDirName, MetricsFileName)
}
