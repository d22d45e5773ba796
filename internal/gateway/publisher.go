package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"smartbuilder/internal/models"
)

// VersionReader reads a version back after the backend published it.
type VersionReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error)
}

// RemotePublisher publishes through the backend's POST /publish endpoint
// and reads the resulting row from the store.
type RemotePublisher struct {
	client *HTTPClient
	store  VersionReader
}

// NewRemotePublisher creates a publisher over client and store.
func NewRemotePublisher(client *HTTPClient, store VersionReader) *RemotePublisher {
	return &RemotePublisher{client: client, store: store}
}

// Publish publishes id remotely and returns the updated version.
func (p *RemotePublisher) Publish(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	if _, err := p.client.Publish(ctx, id); err != nil {
		return nil, err
	}
	v, err := p.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading published version: %w", err)
	}
	return v, nil
}
