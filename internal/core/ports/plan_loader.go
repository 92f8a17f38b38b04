package ports

import "go.trai.ch/mallard/internal/core/domain"

// PlanLoader defines the interface for loading build plans.
//
//go:generate mockgen -source=plan_loader.go -destination=mocks/mock_plan_loader.go -package=mocks
type PlanLoader interface {
	// Load finds the plan file starting at cwd and walking up, and parses it.
	Load(cwd string) (*domain.Plan, error)
}
