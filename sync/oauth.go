// ABOUTME: Two-legged OAuth session for Google directory access
// ABOUTME: Builds a client-credentials HTTP client acting on behalf of the requestor email
package sync

import (
	"context"
	"net/http"
	"net/url"

	"github.com/harperreed/gappsync/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/people/v1"
)

// NewOAuthConfig creates the client-credentials config for the configured backend.
func NewOAuthConfig(settings models.Settings, tokenURL string) *clientcredentials.Config {
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}

	return &clientcredentials.Config{
		ClientID:     settings.OAuthKey,
		ClientSecret: settings.OAuthSecret,
		TokenURL:     tokenURL,
		Scopes:       Scopes(settings.Backend),
		EndpointParams: url.Values{
			"xoauth_requestor_id": {settings.OAuthEmail},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Scopes returns the OAuth scopes needed by a backend.
func Scopes(backend string) []string {
	if backend == models.BackendPeople {
		return []string{people.ContactsScope}
	}
	return []string{GDataScope}
}

// NewHTTPClient returns an HTTP client whose tokens refresh automatically.
// The scope is fixed for the life of the client.
func NewHTTPClient(ctx context.Context, settings models.Settings, tokenURL string) *http.Client {
	return NewOAuthConfig(settings, tokenURL).Client(ctx)
}
