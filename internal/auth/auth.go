// Package auth provides Rainwave websocket credentials.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// Credentials identify one Rainwave user to the websocket API.
type Credentials struct {
	UserID int64  // Numeric user id from the Rainwave API key page
	APIKey string // API key paired with UserID
}

// LoadCredentials builds credentials from a user id and either an inline key
// or a path to a file holding it. The file wins when both are set.
func LoadCredentials(userID int64, apiKey, apiKeyPath string) (*Credentials, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}

	if apiKeyPath != "" {
		key, err := LoadAPIKey(apiKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load api key: %w", err)
		}
		apiKey = key
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &Credentials{UserID: userID, APIKey: apiKey}, nil
}

// LoadAPIKey reads a key file, trimming surrounding whitespace.
func LoadAPIKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}

// ActionAuth is the action name of the handshake frame.
const ActionAuth = "auth"

// Message returns the handshake frame: {action:"auth", user_id, key}.
func (c Credentials) Message() map[string]any {
	return map[string]any{
		"action":  ActionAuth,
		"user_id": c.UserID,
		"key":     c.APIKey,
	}
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.UserID > 0 && c.APIKey != ""
}

// String redacts the key so credentials can be logged.
func (c Credentials) String() string {
	return fmt.Sprintf("user_id=%d key=%s", c.UserID, redact(c.APIKey))
}

func redact(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}
