package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/nodebase/pkg/cmd"
	"github.com/dukex/nodebase/pkg/credentials"
	"github.com/dukex/nodebase/pkg/log"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

var errInvalidCredentialType = errors.New("invalid credential type")

func secretFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "credentials-secret",
			Usage:    "Secret the credential encryption key is derived from",
			Required: true,
			Sources:  cli.EnvVars("CREDENTIALS_SECRET"),
		},
		&cli.StringFlag{
			Name:    "credentials-salt",
			Usage:   "Salt for the credential key derivation",
			Sources: cli.EnvVars("CREDENTIALS_SALT"),
		},
		&cli.StringFlag{
			Name:     "value",
			Usage:    "Secret value; WhatsApp credentials take \"accessToken:phoneNumberId\"",
			Required: true,
		},
	}
}

func NewCredentialsCommand() *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"c"},
		Usage:   "Manage encrypted credentials",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Encrypt and store a credential, printing its id",
				Flags: append(secretFlags(),
					&cli.StringFlag{
						Name:    "database-url",
						Usage:   "Persistence URL",
						Value:   "./data",
						Sources: cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{Name: "user", Usage: "Owning user id", Required: true},
					&cli.StringFlag{Name: "type", Usage: "OPENAI, ANTHROPIC, GEMINI or WHATSAPP", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
				),
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := log.WithModule("nodebase-credentials")

					p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
					if err != nil {
						return err
					}

					defer func() {
						err := p.Close(context.WithoutCancel(ctx))
						if err != nil {
							logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
						}
					}()

					cipher, err := credentials.NewCipher(command.String("credentials-secret"), command.String("credentials-salt"))
					if err != nil {
						return err
					}

					credential, err := addCredential(ctx, p, cipher, models.Credential{
						Name:   command.String("name"),
						UserID: command.String("user"),
						Type:   models.CredentialType(command.String("type")),
					}, command.String("value"))
					if err != nil {
						return err
					}

					fmt.Fprintln(os.Stdout, credential.ID)

					return nil
				},
			},
			{
				Name:  "encrypt",
				Usage: "Print the encrypted form of a value",
				Flags: secretFlags(),
				Action: func(_ context.Context, command *cli.Command) error {
					cipher, err := credentials.NewCipher(command.String("credentials-secret"), command.String("credentials-salt"))
					if err != nil {
						return err
					}

					blob, err := cipher.Encrypt(command.String("value"))
					if err != nil {
						return err
					}

					fmt.Fprintln(os.Stdout, blob)

					return nil
				},
			},
		},
	}
}

func addCredential(ctx context.Context, p persistence.Persistence, cipher *credentials.Cipher, credential models.Credential, value string) (*models.Credential, error) {
	if !credential.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", errInvalidCredentialType, credential.Type)
	}

	blob, err := cipher.Encrypt(value)
	if err != nil {
		return nil, err
	}

	credential.ID = uuid.New().String()
	credential.Value = blob

	if credential.Name == "" {
		credential.Name = string(credential.Type)
	}

	err = p.CredentialRepository().Save(ctx, &credential)
	if err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return &credential, nil
}
