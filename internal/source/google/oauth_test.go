package google

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const testClientJSON = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(OAuthCredentials{ClientJSON: testClientJSON})
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || !strings.Contains(cfg.Scopes[0], "spreadsheets") {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}

	if _, err := OAuthConfig(OAuthCredentials{}); err == nil {
		t.Error("expected an error without a client")
	}
	if _, err := OAuthConfig(OAuthCredentials{ClientFile: filepath.Join(t.TempDir(), "nope.json")}); err == nil {
		t.Error("expected an error for a missing client file")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := WriteToken(path, want); err != nil {
		t.Fatalf("WriteToken() error = %v", err)
	}
	got, err := ReadToken(path)
	if err != nil {
		t.Fatalf("ReadToken() error = %v", err)
	}
	if got.RefreshToken != "refresh" || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("ReadToken() = %+v", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := WriteToken(empty, &oauth2.Token{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadToken(empty); err == nil {
		t.Error("expected an error for a token file without tokens")
	}
}

func TestOAuthCredentialsConfigured(t *testing.T) {
	tests := []struct {
		name string
		in   OAuthCredentials
		want bool
	}{
		{"empty", OAuthCredentials{}, false},
		{"token only", OAuthCredentials{TokenFile: "t.json"}, false},
		{"client only", OAuthCredentials{ClientFile: "c.json"}, false},
		{"file client", OAuthCredentials{ClientFile: "c.json", TokenFile: "t.json"}, true},
		{"inline client", OAuthCredentials{ClientJSON: "{}", TokenFile: "t.json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.configured(); got != tt.want {
				t.Errorf("configured() = %v, want %v", got, tt.want)
			}
		})
	}
}
