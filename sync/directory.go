// ABOUTME: Directory abstraction over the remote contact service
// ABOUTME: Selects the GData or People backend and runs the configuration connectivity check
package sync

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// Directory is the remote contact service. Calls are sequential and each
// one is a single remote request.
type Directory interface {
	// Get fetches a contact, or the contact feed when remoteID is empty.
	Get(ctx context.Context, remoteID string) error
	Create(ctx context.Context, contact models.Contact) (string, error)
	Update(ctx context.Context, contact models.Contact, remoteID string) error
	Delete(ctx context.Context, remoteID string) error
}

// Options tune how a Directory is built.
type Options struct {
	// HTTPClient replaces the OAuth session, mainly for tests.
	HTTPClient *http.Client
	// Endpoint overrides the backend base URL.
	Endpoint string
	// TokenURL overrides the OAuth token endpoint.
	TokenURL string
	// Limiter paces remote calls when set.
	Limiter *rate.Limiter
}

// NewDirectory opens one authenticated session for the configured backend.
func NewDirectory(ctx context.Context, settings models.Settings, opts Options) (Directory, error) {
	client := opts.HTTPClient
	if client == nil {
		if !settings.HasCredentials() {
			return nil, configurationError("domain, oauth email, key and secret are required")
		}
		client = NewHTTPClient(ctx, settings, opts.TokenURL)
	}

	switch settings.Backend {
	case models.BackendGData, "":
		return NewGDataClient(client, settings, opts), nil
	case models.BackendPeople:
		return NewPeopleClient(ctx, client, settings, opts)
	default:
		return nil, configurationError("unknown backend %q", settings.Backend)
	}
}

// VerifyConnection performs a lightweight read against the directory.
func VerifyConnection(ctx context.Context, dir Directory) error {
	return dir.Get(ctx, "")
}

// CheckConnection reports whether the directory answered. Failures are
// recovered into false.
func CheckConnection(ctx context.Context, dir Directory) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return VerifyConnection(ctx, dir) == nil
}

// ClassifyConnectionError turns a connectivity failure into an admin-facing message.
func ClassifyConnectionError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "Google rejected the OAuth credentials. Check the consumer key and secret, and that the domain has granted this client access to contacts."
	case errors.Is(err, ErrConfiguration):
		return "The sync settings are incomplete: " + err.Error()
	default:
		return "Could not reach the Google directory: " + err.Error()
	}
}

// classify maps a remote failure to an error kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var syncErr *Error
	if errors.As(err, &syncErr) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return newError(KindAuthentication, op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(KindAuthentication, op, err)
		}
	}

	return newError(KindRemoteAPI, op, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func profileURL(base string, id uuid.UUID) string {
	if base == "" || id == uuid.Nil {
		return ""
	}
	return base + id.String()
}

// trailingSegment returns the part of a resource locator after the last slash.
func trailingSegment(locator string) string {
	locator = strings.TrimRight(strings.TrimSpace(locator), "/")
	if i := strings.LastIndex(locator, "/"); i >= 0 {
		return locator[i+1:]
	}
	return locator
}

func requireRemoteID(op string, contactID uuid.UUID, remoteID string) error {
	if remoteID == "" {
		return invariantError(op, contactID, "remote id is required")
	}
	return nil
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return newError(KindRemoteAPI, "rate limit", err)
	}
	return nil
}
