package services

import (
	"context"
)

// UpdateRunner defines the interface for running the external update process
type UpdateRunner interface {
	Run(ctx context.Context, req UpdateRequest) (*UpdateResult, error)
}

// Compile-time interface verification
var _ UpdateRunner = (*UpdateService)(nil)
