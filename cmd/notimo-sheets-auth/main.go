// Command notimo-sheets-auth runs the one-time OAuth consent flow for the
// sheets backend and saves the resulting token to GOOGLE_OAUTH_TOKEN_FILE.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"notimo/internal/cli"
	"notimo/internal/log"
	"notimo/internal/source/google"
)

const authTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(log.ComponentSheets)

	creds := google.OAuthCredentials{
		ClientJSON: os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
		ClientFile: os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		TokenFile:  os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
	}
	if creds.TokenFile == "" {
		creds.TokenFile = "token.json"
	}
	cfg, err := google.OAuthConfig(creds)
	if err != nil {
		cli.Fatal(logger, "Cannot load OAuth client", err)
	}

	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	// The OAuth client must list this URI among its authorized redirects.
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, authTimeout)
	defer cancel()

	state := uuid.NewString()
	codes := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codes <- q.Get("code"):
		default:
		}
	})
	srv := &http.Server{Addr: "localhost:" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", log.FieldError, err)
			cancel()
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codes:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			cli.Fatal(logger, "Token exchange failed", err)
		}
		if err := google.WriteToken(creds.TokenFile, tok); err != nil {
			cli.Fatal(logger, "Cannot save token", err)
		}
		logger.Info("Saved OAuth token", "path", creds.TokenFile)
	case <-ctx.Done():
		cli.Fatal(logger, "Authorization did not complete", ctx.Err())
	}
}
