package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthCredentials authenticates as a Google user instead of a service
// account. The token file is produced once by cmd/notimo-sheets-auth.
type OAuthCredentials struct {
	// ClientJSON takes precedence over ClientFile.
	ClientJSON string
	ClientFile string
	TokenFile  string
}

func (o OAuthCredentials) configured() bool {
	return strings.TrimSpace(o.TokenFile) != "" &&
		(strings.TrimSpace(o.ClientJSON) != "" || strings.TrimSpace(o.ClientFile) != "")
}

// OAuthConfig loads the OAuth client and scopes it to spreadsheets.
func OAuthConfig(o OAuthCredentials) (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(o.ClientJSON) != "":
		b = []byte(o.ClientJSON)
	case strings.TrimSpace(o.ClientFile) != "":
		var err error
		if b, err = os.ReadFile(o.ClientFile); err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// ReadToken loads a token saved by WriteToken.
func ReadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, errors.New("oauth token file holds no token")
	}
	return &tok, nil
}

// WriteToken saves tok with owner-only permissions.
func WriteToken(path string, tok *oauth2.Token) error {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

func oauthTokenSource(ctx context.Context, o OAuthCredentials) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(o)
	if err != nil {
		return nil, err
	}
	tok, err := ReadToken(o.TokenFile)
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}
