package config

import "os"

// Settings carries environment-derived credentials and endpoints.
// These never live in vlt.toml.
type Settings struct {
	APIKey     string // chat/embedding API key
	APIBaseURL string // OpenAI-compatible base URL
	VaultURL   string // vault document service base URL
	SyncURL    string // remote sync backend base URL
	SyncToken  string // bearer token for the sync backend
	GenAIKey   string // Google GenAI key (alternate embedding provider)
}

// SettingsFromEnv reads the VLT_* environment.
func SettingsFromEnv() Settings {
	s := Settings{
		APIKey:     os.Getenv("VLT_API_KEY"),
		APIBaseURL: os.Getenv("VLT_API_BASE_URL"),
		VaultURL:   os.Getenv("VLT_VAULT_URL"),
		SyncURL:    os.Getenv("VLT_SYNC_URL"),
		SyncToken:  os.Getenv("VLT_SYNC_TOKEN"),
		GenAIKey:   os.Getenv("GEMINI_API_KEY"),
	}
	if s.APIBaseURL == "" {
		s.APIBaseURL = "https://api.openai.com/v1"
	}
	return s
}

// HasAPIKey reports whether a chat/embedding key is configured.
func (s Settings) HasAPIKey() bool { return s.APIKey != "" }
