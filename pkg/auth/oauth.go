package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultScopes are the scopes the sync core needs: mailbox read/modify,
// label management, and the identity profile shown next to the credential.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.labels",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// LoadOAuthConfig reads an OAuth client credentials file and returns the
// oauth2 configuration for it.
func LoadOAuthConfig(credentialsPath string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials file: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials file: %w", err)
	}
	return config, nil
}

// InteractiveConsent runs the interactive consent flow: a local server
// captures the authorization code from the browser redirect and exchanges
// it for a token. This is the fallback when no prior session exists or the
// silent attempt fails.
func InteractiveConsent(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		Addr: ":8080",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("<html><body><h2>Authorization error</h2><p>Authorization code not received.</p></body></html>"))
				errorChan <- fmt.Errorf("authorization code not received")
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html><body><h2>Authorization successful</h2><p>You can close this window and return to the application.</p></body></html>"))
			codeChan <- code
		}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errorChan <- err
		}
	}()

	localConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  "http://localhost:8080",
		Scopes:       config.Scopes,
		Endpoint:     config.Endpoint,
	}

	authURL := localConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("\nAuthorization required\n")
	fmt.Printf("1. Open this link: %s\n", authURL)
	fmt.Printf("2. Grant access to the application\n")
	fmt.Printf("\nWaiting for authorization...\n")

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errorChan:
		_ = server.Shutdown(ctx)
		return nil, fmt.Errorf("local server error: %w", err)
	case <-time.After(5 * time.Minute):
		_ = server.Shutdown(ctx)
		return nil, fmt.Errorf("authorization timeout exceeded")
	case <-ctx.Done():
		_ = server.Shutdown(ctx)
		return nil, ctx.Err()
	}
	_ = server.Shutdown(ctx)

	token, err := localConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorization code for token: %w", err)
	}
	return token, nil
}
