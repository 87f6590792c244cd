package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// authClaim is the JWT claim namespace that carries ChatGPT account metadata.
const authClaim = "https://api.openai.com/auth"

// AccountIDFromToken extracts the ChatGPT account id from a JWT access token.
// The token must have exactly three non-empty dot-separated segments and a
// base64url (unpadded) JSON payload. Any other shape yields "", false.
func AccountIDFromToken(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", false
		}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}

	var claims map[string]json.RawMessage
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", false
	}
	rawAuth, ok := claims[authClaim]
	if !ok {
		return "", false
	}

	var auth map[string]any
	if err := json.Unmarshal(rawAuth, &auth); err != nil {
		return "", false
	}
	id, ok := auth["chatgpt_account_id"].(string)
	if !ok {
		return "", false
	}
	return id, true
}
