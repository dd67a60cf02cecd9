package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

// MappingInput holds the editable fields of a process mapping
type MappingInput struct {
	ProcessName string  `json:"process_name" validate:"required,max=255"`
	Client      string  `json:"client" validate:"required,max=255"`
	Model       string  `json:"model" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// MappingService manages stored process mappings
type MappingService struct {
	repo    repositories.ProcessMappingRepository
	txMgr   repositories.TransactionManager
	clients []string
	cache   *CachedLookup
	logger  *zap.Logger
}

// NewMappingService creates a mapping service; clients lists the configured client names
func NewMappingService(repo repositories.ProcessMappingRepository, txMgr repositories.TransactionManager, clients []string, logger *zap.Logger) *MappingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		repo:    repo,
		txMgr:   txMgr,
		clients: clients,
		logger:  logger,
	}
}

// WithCache makes writes invalidate the given lookup cache
func (s *MappingService) WithCache(cache *CachedLookup) *MappingService {
	s.cache = cache
	return s
}

// forget drops cached routes after a write; an empty name clears everything
func (s *MappingService) forget(processName string) {
	if s.cache == nil {
		return
	}
	if processName == "" {
		s.cache.Clear()
		return
	}
	s.cache.Invalidate(processName)
}

func (s *MappingService) validate(input MappingInput) error {
	if strings.TrimSpace(input.ProcessName) == "" {
		return services.NewDomainError(services.ErrorTypeValidation, "process_name cannot be blank", nil)
	}
	if !contains(s.clients, input.Client) {
		return services.NewDomainError(services.ErrorTypeValidation, fmt.Sprintf("unknown client: %s", input.Client), nil).
			WithDetail("available_clients", s.clients)
	}
	return nil
}

// Create stores a new mapping
func (s *MappingService) Create(ctx context.Context, input MappingInput) (*models.ProcessMapping, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	mapping := models.NewProcessMapping(strings.TrimSpace(input.ProcessName), input.Client, input.Model)
	mapping.Description = input.Description
	if input.IsActive != nil {
		mapping.IsActive = *input.IsActive
	}

	if err := s.repo.Create(ctx, mapping); err != nil {
		return nil, err
	}
	s.forget(mapping.ProcessName)

	s.logger.Info("process mapping created",
		zap.String("id", mapping.ID.String()),
		zap.String("process", mapping.ProcessName),
		zap.String("client", mapping.Client),
		zap.String("model", mapping.Model),
	)
	return mapping, nil
}

// Get retrieves one mapping
func (s *MappingService) Get(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves mappings; a nil active lists both states
func (s *MappingService) List(ctx context.Context, active *bool, limit, offset int) ([]*models.ProcessMapping, error) {
	mappings, err := s.repo.List(ctx, active, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list process mappings", err)
	}
	return mappings, nil
}

// Update replaces the editable fields of a mapping
func (s *MappingService) Update(ctx context.Context, id uuid.UUID, input MappingInput) (*models.ProcessMapping, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var updated *models.ProcessMapping
	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		repo := s.repo.WithTx(tx)

		mapping, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		mapping.ProcessName = strings.TrimSpace(input.ProcessName)
		mapping.Client = input.Client
		mapping.Model = input.Model
		mapping.Description = input.Description
		if input.IsActive != nil {
			mapping.IsActive = *input.IsActive
		}
		mapping.UpdatedAt = time.Now().UTC()

		if err := repo.Update(ctx, mapping); err != nil {
			return err
		}
		updated = mapping
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forget("")
	return updated, nil
}

// Toggle flips the active flag and returns the updated mapping
func (s *MappingService) Toggle(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error) {
	var toggled *models.ProcessMapping
	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		repo := s.repo.WithTx(tx)

		mapping, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.SetActive(ctx, id, !mapping.IsActive); err != nil {
			return err
		}

		mapping.IsActive = !mapping.IsActive
		mapping.UpdatedAt = time.Now().UTC()
		toggled = mapping
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forget(toggled.ProcessName)

	s.logger.Info("process mapping toggled",
		zap.String("id", id.String()),
		zap.Bool("is_active", toggled.IsActive),
	)
	return toggled, nil
}

// Delete removes a mapping
func (s *MappingService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.forget("")
	s.logger.Info("process mapping deleted", zap.String("id", id.String()))
	return nil
}
