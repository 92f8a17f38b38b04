// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/mallard/internal/adapters/cas"
	_ "go.trai.ch/mallard/internal/adapters/config"
	_ "go.trai.ch/mallard/internal/adapters/expr"
	_ "go.trai.ch/mallard/internal/adapters/fs"
	_ "go.trai.ch/mallard/internal/adapters/langs"
	_ "go.trai.ch/mallard/internal/adapters/logger"
	_ "go.trai.ch/mallard/internal/adapters/metrics"
	_ "go.trai.ch/mallard/internal/adapters/shell"
	_ "go.trai.ch/mallard/internal/adapters/telemetry"
	_ "go.trai.ch/mallard/internal/adapters/tui"
	_ "go.trai.ch/mallard/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/mallard/internal/app"
)
