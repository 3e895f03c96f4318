package submission

import (
	"context"

	"loan-origination/internal/models"
)

// Authenticator logs an officer in. Its errors are surfaced unchanged.
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
}

// ApplicationRepository persists drafts behind the network boundary.
type ApplicationRepository interface {
	// Create stores a new application and returns its server identifier.
	Create(ctx context.Context, draft models.ApplicationDraft) (string, error)
	Update(ctx context.Context, id string, draft models.ApplicationDraft) error
}

// EnumsRepository fetches the reference vocabularies.
type EnumsRepository interface {
	FetchIDCardTypes(ctx context.Context) ([]models.ReferenceOption, error)
	FetchProductTypes(ctx context.Context) ([]models.ReferenceOption, error)
}
