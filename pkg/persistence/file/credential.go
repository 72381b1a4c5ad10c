package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
)

const credentialsDir = "credentials"

// CredentialRepository stores encrypted credentials. Reads and deletes are
// scoped to the owner; another user's credential is reported as not found.
type CredentialRepository struct {
	store *store
}

func (cr *CredentialRepository) GetByID(_ context.Context, id, userID string) (*models.Credential, error) {
	if validateID(id) != nil {
		return nil, persistence.ErrCredentialNotFound
	}

	cr.store.mu.RLock()
	defer cr.store.mu.RUnlock()

	var credential models.Credential

	found, err := cr.store.read(credentialsDir, id, &credential)
	if err != nil {
		return nil, err
	}

	if !found || credential.UserID != userID {
		return nil, persistence.ErrCredentialNotFound
	}

	return &credential, nil
}

func (cr *CredentialRepository) ListByUser(_ context.Context, userID string) ([]*models.Credential, error) {
	cr.store.mu.RLock()
	defer cr.store.mu.RUnlock()

	ids, err := cr.store.ids(credentialsDir)
	if err != nil {
		return nil, err
	}

	credentials := make([]*models.Credential, 0, len(ids))

	for _, id := range ids {
		var credential models.Credential

		found, err := cr.store.read(credentialsDir, id, &credential)
		if err != nil {
			return nil, err
		}

		if found && credential.UserID == userID {
			credentials = append(credentials, &credential)
		}
	}

	slices.SortFunc(credentials, func(a, b *models.Credential) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return credentials, nil
}

func (cr *CredentialRepository) Save(_ context.Context, credential *models.Credential) error {
	err := validateID(credential.ID)
	if err != nil {
		return err
	}

	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	now := time.Now().UTC()
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	return cr.store.write(credentialsDir, credential.ID, credential)
}

func (cr *CredentialRepository) Delete(_ context.Context, id, userID string) error {
	if validateID(id) != nil {
		return persistence.ErrCredentialNotFound
	}

	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	var credential models.Credential

	found, err := cr.store.read(credentialsDir, id, &credential)
	if err != nil {
		return err
	}

	if !found || credential.UserID != userID {
		return persistence.ErrCredentialNotFound
	}

	return cr.store.remove(credentialsDir, id)
}
