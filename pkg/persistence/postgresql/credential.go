package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
)

// CredentialRepository stores encrypted credentials, always filtered by owner.
type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, name, user_id, credential_type, value, created_at, updated_at`

func scanCredential(row rowScanner) (*models.Credential, error) {
	var credential models.Credential

	err := row.Scan(&credential.ID, &credential.Name, &credential.UserID, &credential.Type,
		&credential.Value, &credential.CreatedAt, &credential.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &credential, nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id, userID string) (*models.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)

	credential, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCredentialNotFound
		}

		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	return credential, nil
}

func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	credentials := make([]*models.Credential, 0)

	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	return credentials, rows.Err()
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	now := time.Now().UTC()
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			credential_type = EXCLUDED.credential_type,
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		WHERE credentials.user_id = EXCLUDED.user_id
	`, credential.ID, credential.Name, credential.UserID, credential.Type, credential.Value,
		credential.CreatedAt, credential.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrCredentialNotFound
	}

	return nil
}
