package salesbot

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables consumed by LoadConfig.
const (
	EnvFolderID        = "SALES_FOLDER_ID"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvCredentials     = "GOOGLE_SERVICE_ACCOUNT_CREDENTIALS"
	EnvCredentialsPath = "GOOGLE_SERVICE_ACCOUNT_CREDENTIALS_PATH"
	EnvGeminiModel     = "GEMINI_MODEL"

	defaultTokenURI    = "https://oauth2.googleapis.com/token"
	defaultGeminiModel = "gemini-1.5-flash"
)

// Config carries everything the pipeline needs to reach its collaborators.
type Config struct {
	FolderID       string
	GeminiAPIKey   string
	GeminiModel    string
	ServiceAccount *ServiceAccount
}

// ServiceAccount is the parsed service-account credential used to
// authenticate against the remote file store.
type ServiceAccount struct {
	ClientEmail string
	PrivateKey  *rsa.PrivateKey
	TokenURI    string
}

// LoadConfig resolves configuration from the environment, loading a .env
// file first when one exists. Inline credential JSON takes precedence over
// a credential file path. Missing required values produce errors naming the
// variable to set.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	folderID := os.Getenv(EnvFolderID)
	if folderID == "" {
		return nil, fmt.Errorf("%w: set %s to the remote folder ID", ErrMissingConfig, EnvFolderID)
	}
	apiKey := os.Getenv(EnvGeminiAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingConfig, EnvGeminiAPIKey)
	}

	raw := []byte(os.Getenv(EnvCredentials))
	if len(raw) == 0 {
		path := os.Getenv(EnvCredentialsPath)
		if path == "" {
			return nil, fmt.Errorf("%w: set %s (inline JSON) or %s (file path)",
				ErrMissingConfig, EnvCredentials, EnvCredentialsPath)
		}
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("salesbot: read credentials file: %w", err)
		}
	}

	account, err := ParseServiceAccount(raw)
	if err != nil {
		return nil, err
	}

	model := os.Getenv(EnvGeminiModel)
	if model == "" {
		model = defaultGeminiModel
	}

	return &Config{
		FolderID:       folderID,
		GeminiAPIKey:   apiKey,
		GeminiModel:    model,
		ServiceAccount: account,
	}, nil
}

// ParseServiceAccount decodes a service-account JSON credential and its
// PEM-encoded private key.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	var payload struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("salesbot: parse service account JSON: %w", err)
	}
	if payload.ClientEmail == "" || payload.PrivateKey == "" {
		return nil, fmt.Errorf("salesbot: service account JSON lacks client_email or private_key")
	}
	if payload.TokenURI == "" {
		payload.TokenURI = defaultTokenURI
	}

	block, _ := pem.Decode([]byte(payload.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("salesbot: service account private_key is not PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Older credentials use PKCS#1.
		rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, fmt.Errorf("salesbot: parse service account key: %w", err)
		}
		key = rsaKey
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("salesbot: service account key is not RSA")
	}

	return &ServiceAccount{
		ClientEmail: payload.ClientEmail,
		PrivateKey:  rsaKey,
		TokenURI:    payload.TokenURI,
	}, nil
}
