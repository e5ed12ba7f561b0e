// ABOUTME: Tests for the People API directory backend against a fake server
// ABOUTME: Covers create, update with etag, idempotent delete and type conversion
package sync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeople(t *testing.T, handler http.HandlerFunc) *PeopleClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	settings := testSettings()
	settings.Backend = models.BackendPeople

	client, err := NewPeopleClient(context.Background(), server.Client(), settings, Options{Endpoint: server.URL + "/"})
	require.NoError(t, err)
	return client
}

func TestPeopleCreate(t *testing.T) {
	var payload map[string]any
	client := newTestPeople(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "people:createContact"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"resourceName":"people/c8675309","etag":"abc"}`)
	})

	remoteID, err := client.Create(context.Background(), models.Contact{
		ID:        uuid.New(),
		FirstName: "Ada",
		Phones:    []models.Phone{{Number: "555-0101", Location: models.LocationHome, Kind: models.PhoneKindFax}},
	})
	require.NoError(t, err)
	assert.Equal(t, "c8675309", remoteID)

	phones, ok := payload["phoneNumbers"].([]any)
	require.True(t, ok)
	require.Len(t, phones, 1)
	assert.Equal(t, "homeFax", phones[0].(map[string]any)["type"])
}

func TestPeopleUpdateUsesCurrentEtag(t *testing.T) {
	var updated map[string]any
	client := newTestPeople(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"resourceName":"people/c1","etag":"etag-42"}`)
		case strings.HasSuffix(r.URL.Path, ":updateContact"):
			assert.Contains(t, r.URL.Query().Get("updatePersonFields"), "emailAddresses")
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &updated))
			_, _ = io.WriteString(w, `{"resourceName":"people/c1","etag":"etag-43"}`)
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	})

	err := client.Update(context.Background(), models.Contact{ID: uuid.New(), LastName: "Lovelace"}, "c1")
	require.NoError(t, err)
	assert.Equal(t, "etag-42", updated["etag"])
}

func TestPeopleDeleteMissingIsIdempotent(t *testing.T) {
	client := newTestPeople(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "people/gone:deleteContact"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	})

	assert.NoError(t, client.Delete(context.Background(), "gone"))
}

func TestPeopleAuthFailure(t *testing.T) {
	client := newTestPeople(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`)
	})

	err := VerifyConnection(context.Background(), client)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, ClassifyConnectionError(err), "rejected the OAuth credentials")
}

func TestPeoplePhoneType(t *testing.T) {
	assert.Equal(t, "workFax", peoplePhoneType("work_fax"))
	assert.Equal(t, "mobile", peoplePhoneType("mobile"))
}
