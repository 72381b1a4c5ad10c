package models

import "time"

type CredentialType string

const (
	CredentialTypeOpenAI    CredentialType = "OPENAI"
	CredentialTypeAnthropic CredentialType = "ANTHROPIC"
	CredentialTypeGemini    CredentialType = "GEMINI"
	CredentialTypeWhatsApp  CredentialType = "WHATSAPP"
)

// Credential is a user-owned secret. Value always holds the encrypted blob;
// dual-field credentials encrypt "first:second".
type Credential struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UserID    string         `json:"user_id"`
	Type      CredentialType `json:"type"`
	Value     string         `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (t CredentialType) Valid() bool {
	switch t {
	case CredentialTypeOpenAI, CredentialTypeAnthropic, CredentialTypeGemini, CredentialTypeWhatsApp:
		return true
	default:
		return false
	}
}
