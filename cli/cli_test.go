// ABOUTME: Tests for the gappsync command tree
// ABOUTME: Drives commands end to end against a temp database and a fake Google directory
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/gappsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createdEntry = `<?xml version="1.0" encoding="UTF-8"?>
<entry xmlns="http://www.w3.org/2005/Atom">
  <id>http://www.google.com/m8/feeds/contacts/example.org/base/9d1e77</id>
</entry>`

// newFakeGoogle serves an OAuth token endpoint at /token and a contact feed
// everywhere else.
func newFakeGoogle(t *testing.T, tokenStatus int) (*httptest.Server, *[]string) {
	t.Helper()

	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tokenStatus)
			if tokenStatus == http.StatusOK {
				_, _ = io.WriteString(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
			} else {
				_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
			}
			return
		}
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, createdEntry)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

type testCLI struct {
	t      *testing.T
	dbPath string
	server *httptest.Server
}

func newTestCLI(t *testing.T, server *httptest.Server) *testCLI {
	return &testCLI{t: t, dbPath: filepath.Join(t.TempDir(), "gappsync.db"), server: server}
}

func (c *testCLI) execute(args ...string) (string, error) {
	c.t.Helper()

	base := []string{"--db-path", c.dbPath, "--log-level", "error", "--requests-per-second", "0"}
	if c.server != nil {
		base = append(base, "--endpoint", c.server.URL, "--token-url", c.server.URL+"/token")
	}

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(base, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *testCLI) mustExecute(args ...string) string {
	c.t.Helper()
	out, err := c.execute(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *testCLI) status() models.Status {
	c.t.Helper()
	var status models.Status
	require.NoError(c.t, json.Unmarshal([]byte(c.mustExecute("status", "--json")), &status))
	return status
}

func TestConfigureRunsFirstSync(t *testing.T) {
	server, calls := newFakeGoogle(t, http.StatusOK)
	c := newTestCLI(t, server)

	out := c.mustExecute("crm", "add-group", "--title", "Staff", "--email-domain", "example.org")
	assert.Contains(t, out, "ID: 1")
	c.mustExecute("crm", "add-contact", "--first-name", "Ada", "--last-name", "Lovelace", "--email", "ada@example.org")
	c.mustExecute("crm", "add-contact", "--first-name", "Charles", "--email", "charles@elsewhere.net")

	out = c.mustExecute("configure",
		"--domain", "example.org",
		"--oauth-email", "admin@example.org",
		"--oauth-key", "key",
		"--oauth-secret", "secret",
		"--group", "1",
	)
	assert.Contains(t, out, "✓ Connected to the Google directory")
	assert.Contains(t, out, "✓ Settings saved")
	assert.Contains(t, out, "1 contact(s) created.")
	assert.Contains(t, *calls, "POST /example.org/full")

	status := c.status()
	assert.True(t, status.Configured)
	assert.Equal(t, 1, status.Synced)
	assert.Equal(t, 1, status.Processed)
	require.NotNil(t, status.LastSync)
	require.Len(t, status.RecentJobs, 1)
	assert.True(t, status.RecentJobs[0].OK)

	out = c.mustExecute("configure", "--max-processed", "10")
	assert.NotContains(t, out, "Running the first sync", "reconfiguring does not trigger a first run")

	out = c.mustExecute("run")
	assert.Contains(t, out, "Nothing needed to be synchronized.")
}

func TestConfigureRejectedCredentials(t *testing.T) {
	server, _ := newFakeGoogle(t, http.StatusUnauthorized)
	c := newTestCLI(t, server)

	c.mustExecute("crm", "add-group", "--title", "Staff")
	_, err := c.execute("configure",
		"--domain", "example.org",
		"--oauth-email", "admin@example.org",
		"--oauth-key", "key",
		"--oauth-secret", "wrong",
		"--group", "1",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected the OAuth credentials")

	assert.False(t, c.status().Configured, "settings are not saved when the check fails")
}

func TestConfigureValidatesGroup(t *testing.T) {
	c := newTestCLI(t, nil)

	_, err := c.execute("configure", "--domain", "example.org", "--oauth-secret", "s", "--skip-check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group is required")

	_, err = c.execute("configure", "--group", "42", "--oauth-secret", "s", "--skip-check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group not found")

	c.mustExecute("crm", "add-group", "--title", "Staff")
	_, err = c.execute("configure", "--group", "1", "--oauth-secret", "s", "--backend", "ldap", "--skip-check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestConfigureFromFile(t *testing.T) {
	c := newTestCLI(t, nil)
	c.mustExecute("crm", "add-group", "--title", "Staff")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: example.org\noauth_email: admin@example.org\noauth_key: key\noauth_secret: secret\ngroup: \"1\"\nmax_processed: 7\nbackend: people\n"), 0o600))

	c.mustExecute("configure", "--file", path, "--skip-check", "--skip-first-run")

	status := c.status()
	assert.True(t, status.Configured)
	assert.Equal(t, 7, status.MaxProcessed)
	assert.Equal(t, models.BackendPeople, status.Backend)
}

func TestRunWithoutConfigurationFails(t *testing.T) {
	c := newTestCLI(t, nil)

	out, err := c.execute("run")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Sync failed (configuration)")

	status := c.status()
	require.Len(t, status.RecentJobs, 1)
	assert.Equal(t, "configuration", status.RecentJobs[0].Code)
}

func TestResetRequiresConfirm(t *testing.T) {
	c := newTestCLI(t, nil)
	c.mustExecute("crm", "add-group", "--title", "Staff")
	c.mustExecute("configure", "--domain", "example.org", "--oauth-email", "a@example.org", "--oauth-key", "k",
		"--oauth-secret", "s", "--group", "1", "--skip-check", "--skip-first-run")

	_, err := c.execute("reset")
	require.Error(t, err)
	assert.True(t, c.status().Configured)

	out := c.mustExecute("reset", "--confirm")
	assert.Contains(t, out, "✓ Sync state reset")
	assert.False(t, c.status().Configured)
}

func TestCRMCommands(t *testing.T) {
	c := newTestCLI(t, nil)

	c.mustExecute("crm", "add-group", "--title", "Board")
	out := c.mustExecute("crm", "add-contact", "--first-name", "Grace", "--employer", "Navy", "--phone", "555-0100",
		"--phone-kind", "mobile", "--group", "1")
	assert.Contains(t, out, "✓ Created contact: Grace")

	id := strings.TrimSuffix(strings.TrimSpace(out[strings.Index(out, "ID: ")+4:]), ")")

	out = c.mustExecute("crm", "update-contact", id, "--last-name", "Hopper")
	assert.Contains(t, out, "Grace Hopper")

	out = c.mustExecute("crm", "list-contacts", "--query", "hopper")
	assert.Contains(t, out, "Grace Hopper")
	assert.Contains(t, out, "Navy")

	c.mustExecute("crm", "remove-member", "1", id)
	c.mustExecute("crm", "add-member", "1", id)

	out = c.mustExecute("crm", "list-groups")
	assert.Contains(t, out, "Board")
	assert.Contains(t, out, "static")

	c.mustExecute("crm", "delete-contact", id)
	c.mustExecute("crm", "delete-contact", id, "--purge")
	_, err := c.execute("crm", "delete-contact", id, "--purge")
	assert.Error(t, err)

	_, err = c.execute("crm", "add-contact")
	assert.Error(t, err)
	_, err = c.execute("crm", "update-contact", "not-a-uuid")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--db-path", filepath.Join(t.TempDir(), "x.db"), "--log-level", "loud", "status"})
	assert.Error(t, cmd.Execute())
}
