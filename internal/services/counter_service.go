package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtch-store/api/internal/repositories"
)

var errCounterRepositoryRequired = errors.New("counter service: repository is required")

// ErrCounterUnavailable indicates the sequence backend cannot be reached.
var ErrCounterUnavailable = errors.New("counter service: unavailable")

const (
	orderNumberCounterID = "orders"
	orderNumberFormat    = "MTCH-%04d"
)

// CounterServiceDeps wires the counter repository.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
}

type counterService struct {
	repo repositories.CounterRepository
}

// NewCounterService constructs a CounterService enforcing dependency validation.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errCounterRepositoryRequired
	}
	return &counterService{repo: deps.Repository}, nil
}

// NextOrderNumber formats the next value of the shared order sequence. The
// padding widens naturally past 9999, so numbers stay unique forever.
func (s *counterService) NextOrderNumber(ctx context.Context) (string, error) {
	if s == nil || s.repo == nil {
		return "", ErrCounterUnavailable
	}

	value, err := s.repo.Next(ctx, orderNumberCounterID, 1)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return fmt.Sprintf(orderNumberFormat, value), nil
}
