package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mallard/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/langs"     //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/tui"       //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components groups what the command line needs from the object graph.
type Components struct {
	App      *App
	Logger   ports.Logger
	Renderer ports.Renderer
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			cas.NodeID,
			langs.NodeID,
			fs.InspectorNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
			tui.NodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			tui.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			renderer, err := graft.Dep[ports.Renderer](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log, Renderer: renderer}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.PlanLoader](ctx)
	if err != nil {
		return nil, err
	}
	caches, err := graft.Dep[ports.CacheOpener](ctx)
	if err != nil {
		return nil, err
	}
	evaluator, err := graft.Dep[ports.Evaluator](ctx)
	if err != nil {
		return nil, err
	}
	files, err := graft.Dep[ports.FileInspector](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	collector, err := graft.Dep[ports.Metrics](ctx)
	if err != nil {
		return nil, err
	}
	renderer, err := graft.Dep[ports.Renderer](ctx)
	if err != nil {
		return nil, err
	}
	fileWatcher, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}
	return New(loader, caches, evaluator, files, log, tracer, collector, renderer, fileWatcher), nil
}
