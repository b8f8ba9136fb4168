// Package credentials stores Credential records keyed by platform user id.
//
// Three backends share the Repository contract: DynamoDB (the managed
// key-value store the bot was deployed with), SQL (PostgreSQL via pgx or
// SQLite) and an in-process map. Every backend implements Create as a
// single-key conditional write, so two concurrent registrations for the same
// user cannot overwrite each other.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
)

// Repository is the credential store port.
//
// Errors: GetByID, Update and Delete return common.ErrorNotFound for an
// unknown user id; Create returns common.ErrorAlreadyExists when a record for
// the user id is already present.
type Repository interface {
	GetAll(ctx context.Context) (map[string]*models.Credential, error)
	GetByID(ctx context.Context, userID string) (*models.Credential, error)
	Create(ctx context.Context, c *models.Credential) error
	// PutAll upserts every record in one bulk operation. It is a blind
	// overwrite and only meant for administrative imports.
	PutAll(ctx context.Context, creds map[string]*models.Credential) error
	Update(ctx context.Context, c *models.Credential) error
	Delete(ctx context.Context, userID string) error
}
