package credentials

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/dukex/nodebase/pkg/step"
)

const pairSeparator = ":"

var (
	ErrCredentialNotFound      = errors.New("credential not found")
	ErrDecryptionFailed        = errors.New("credential decryption failed")
	ErrInvalidCredentialFormat = errors.New("invalid credential format")
	ErrCredentialTypeMismatch  = errors.New("credential type mismatch")
	ErrNoCipher                = errors.New("credentials secret is not configured")
)

// Repository is the read side the resolver needs. Lookups are scoped to the
// owning user.
type Repository interface {
	GetByID(ctx context.Context, id, userID string) (*models.Credential, error)
}

// Secret is a decrypted credential value. It never renders its value in
// logs or with %v.
type Secret struct {
	Type  models.CredentialType
	value string
}

func (s Secret) Value() string {
	return s.value
}

func (s Secret) String() string {
	return "[REDACTED]"
}

func (s Secret) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(s.Type)),
		slog.String("value", "[REDACTED]"),
	)
}

// Pair splits a dual-field credential on the first separator. Both halves
// must be non-empty.
func (s Secret) Pair() (string, string, error) {
	first, second, found := strings.Cut(s.value, pairSeparator)
	if !found || first == "" || second == "" {
		return "", "", ErrInvalidCredentialFormat
	}

	return first, second, nil
}

type Resolver struct {
	repository Repository
	cipher     *Cipher
	logger     *slog.Logger
}

func NewResolver(repository Repository, cipher *Cipher, logger *slog.Logger) *Resolver {
	return &Resolver{
		repository: repository,
		cipher:     cipher,
		logger:     logger.With("module", "credentials"),
	}
}

// Fetch loads the encrypted credential owned by userID. A credential owned by
// someone else is reported as not found.
func (r *Resolver) Fetch(ctx context.Context, id, userID string) (*models.Credential, error) {
	credential, err := r.repository.GetByID(ctx, id, userID)
	if err != nil {
		if persistence.IsCredentialNotFound(err) {
			return nil, ErrCredentialNotFound
		}

		return nil, err
	}

	if credential == nil || credential.UserID != userID {
		return nil, ErrCredentialNotFound
	}

	return credential, nil
}

// Open decrypts a fetched credential.
func (r *Resolver) Open(credential *models.Credential) (Secret, error) {
	value, err := r.cipher.Decrypt(credential.Value)
	if err != nil {
		r.logger.Warn("Failed to decrypt credential", "credential_id", credential.ID, "error", err)

		return Secret{}, ErrDecryptionFailed
	}

	return Secret{Type: credential.Type, value: value}, nil
}

// Resolve fetches the credential inside the "get-credential" step and
// decrypts it outside, so only the encrypted row is ever memoized. Every
// failure is a non-retriable dependency error labelled with op. A nil
// Resolver stands for a process started without a credentials secret.
func (r *Resolver) Resolve(ctx context.Context, steps step.Steps, op, id, userID string, expected models.CredentialType) (Secret, error) {
	if r == nil {
		return Secret{}, execerr.Dependency(op, "Credentials are not configured", ErrNoCipher)
	}

	credential, err := step.Run(ctx, steps, "get-credential", func(ctx context.Context) (*models.Credential, error) {
		credential, err := r.Fetch(ctx, id, userID)
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, execerr.Dependency(op, "Credential not found", err)
		}

		return credential, err
	})
	if err != nil {
		return Secret{}, err
	}

	if credential == nil {
		return Secret{}, execerr.Dependency(op, "Credential not found", ErrCredentialNotFound)
	}

	if expected != "" && credential.Type != expected {
		return Secret{}, execerr.Dependency(op, "Credential type must be "+string(expected), ErrCredentialTypeMismatch)
	}

	secret, err := r.Open(credential)
	if err != nil {
		return Secret{}, execerr.Dependency(op, "Failed to decrypt credential", err)
	}

	return secret, nil
}
