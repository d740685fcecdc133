// Package token issues the single credential embedded in workflow email links.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Length is the encoded size of a token: 32 random bytes in unpadded base64url.
const Length = 43

// Action names accepted by the action endpoint.
const (
	ActionSelect  = "select"
	ActionApprove = "approve"
)

// ActionPath is the route that consumes action links.
const ActionPath = "/api/workflow/action"

// Generate returns a fresh URL-safe token with 256 bits of entropy.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// WellFormed reports whether value could have been produced by Generate.
func WellFormed(value string) bool {
	if len(value) != Length {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(value)
	return err == nil
}

// ActionURL builds the link for an action. topic is only used by select.
func ActionURL(siteURL, tok, action string, topic int) string {
	params := url.Values{}
	params.Set("token", tok)
	params.Set("action", action)
	if action == ActionSelect {
		params.Set("topic", strconv.Itoa(topic))
	}
	return strings.TrimSuffix(siteURL, "/") + ActionPath + "?" + params.Encode()
}

// PreviewURL builds the read-only draft preview link for a token.
func PreviewURL(siteURL, tok string) string {
	return strings.TrimSuffix(siteURL, "/") + "/draft-preview/" + url.PathEscape(tok)
}
