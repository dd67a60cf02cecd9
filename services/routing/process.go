package routing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

// ProcessMappingLookup resolves a process name to a client and model
type ProcessMappingLookup interface {
	Lookup(ctx context.Context, processName string) (models.Route, bool, error)
}

// StaticMappings is a lookup backed by configuration
type StaticMappings map[string]models.Route

// Lookup implements ProcessMappingLookup
func (s StaticMappings) Lookup(_ context.Context, processName string) (models.Route, bool, error) {
	route, ok := s[processName]
	return route, ok, nil
}

// StoreLookup resolves active process mappings from the repository
type StoreLookup struct {
	repo   repositories.ProcessMappingRepository
	logger *zap.Logger
}

// NewStoreLookup creates a repository-backed lookup
func NewStoreLookup(repo repositories.ProcessMappingRepository, logger *zap.Logger) *StoreLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreLookup{repo: repo, logger: logger}
}

// Lookup implements ProcessMappingLookup.
// A store failure is logged and treated as a miss so static mappings still apply.
func (s *StoreLookup) Lookup(ctx context.Context, processName string) (models.Route, bool, error) {
	mapping, err := s.repo.GetActiveByName(ctx, processName)
	if err != nil {
		if !errors.Is(err, services.ErrProcessMappingNotFound) {
			s.logger.Warn("process mapping lookup failed",
				zap.String("process", processName),
				zap.Error(err),
			)
		}
		return models.Route{}, false, nil
	}
	return mapping.Route(), true, nil
}

// ChainLookup consults each lookup in order and returns the first hit
type ChainLookup []ProcessMappingLookup

// Lookup implements ProcessMappingLookup
func (c ChainLookup) Lookup(ctx context.Context, processName string) (models.Route, bool, error) {
	for _, lookup := range c {
		if lookup == nil {
			continue
		}
		route, found, err := lookup.Lookup(ctx, processName)
		if err != nil {
			return models.Route{}, false, err
		}
		if found {
			return route, true, nil
		}
	}
	return models.Route{}, false, nil
}
