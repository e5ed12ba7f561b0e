package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harperreed/gappsync/models"
	"golang.org/x/oauth2/google"
)

func testSettings() models.Settings {
	return models.Settings{
		Domain:       "example.org",
		OAuthEmail:   "admin@example.org",
		OAuthKey:     "consumer-key",
		OAuthSecret:  "consumer-secret",
		Group:        "1",
		MaxProcessed: 25,
		Backend:      models.BackendGData,
	}
}

func TestOAuthConfigCreation(t *testing.T) {
	config := NewOAuthConfig(testSettings(), "")

	if config.ClientID != "consumer-key" || config.ClientSecret != "consumer-secret" {
		t.Errorf("unexpected client credentials: %q / %q", config.ClientID, config.ClientSecret)
	}
	if config.TokenURL != google.Endpoint.TokenURL {
		t.Errorf("expected Google token URL, got %s", config.TokenURL)
	}
	if got := config.EndpointParams.Get("xoauth_requestor_id"); got != "admin@example.org" {
		t.Errorf("expected requestor admin@example.org, got %q", got)
	}
	if len(config.Scopes) != 1 || config.Scopes[0] != GDataScope {
		t.Errorf("expected GData scope, got %v", config.Scopes)
	}
}

func TestScopesPerBackend(t *testing.T) {
	if got := Scopes(models.BackendPeople); len(got) != 1 || got[0] != "https://www.googleapis.com/auth/contacts" {
		t.Errorf("unexpected People scopes: %v", got)
	}
	if got := Scopes(""); len(got) != 1 || got[0] != GDataScope {
		t.Errorf("unexpected default scopes: %v", got)
	}
}

func TestRejectedCredentialsAreAuthenticationErrors(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
	}))
	defer tokenServer.Close()

	directoryCalled := false
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		directoryCalled = true
	}))
	defer directory.Close()

	ctx := context.Background()
	dir, err := NewDirectory(ctx, testSettings(), Options{Endpoint: directory.URL, TokenURL: tokenServer.URL})
	if err != nil {
		t.Fatalf("NewDirectory failed: %v", err)
	}

	err = VerifyConnection(ctx, dir)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if directoryCalled {
		t.Error("directory should not be called without a token")
	}
	if CheckConnection(ctx, dir) {
		t.Error("CheckConnection should report false")
	}
}

func TestNewDirectoryRequiresCredentials(t *testing.T) {
	settings := testSettings()
	settings.OAuthSecret = ""

	_, err := NewDirectory(context.Background(), settings, Options{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewDirectoryUnknownBackend(t *testing.T) {
	settings := testSettings()
	settings.Backend = "carddav"

	_, err := NewDirectory(context.Background(), settings, Options{HTTPClient: http.DefaultClient})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
