package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fish-not-phish/pixurebyte/internal/apiclient"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/store"
)

const (
	testTeam = "7f9c2ba4-e88f-4c7e-9b1a-1f7d9c7b0a11"
	testScan = "3b241101-e2bb-4255-8caf-4136c566a962"
)

// setup points the CLI at srv with an isolated config dir and a signed-in
// session, and returns the session path.
func setup(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	session := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(session, []byte(`{"access":"tok","refresh":"ref"}`), 0600))
	t.Setenv("PIXURE_SESSION", session)
	t.Setenv("PIXURE_POLL_INTERVAL", "10ms")
	t.Setenv("PIXURE_API_RATE_LIMIT", "0")
	if srv != nil {
		t.Setenv("PIXURE_API_URL", srv.URL+"/api")
	}
	return session
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func completeScan() schema.Scan {
	return schema.Scan{
		ScanID: testScan,
		TeamID: testTeam,
		URL:    "https://example.com",
		Status: schema.StatusComplete,
		Scripts: []string{
			"http://cdn.example.net/lib.js",
			"https://example.com/app.js",
		},
		Links: []string{"https://example.com/about"},
	}
}

func TestVersion(t *testing.T) {
	setup(t, nil)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pixure "+Version)
}

func TestScanResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scans/teams/"+testTeam+"/scans/"+testScan, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(completeScan())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	outDir := t.TempDir()
	out, err := run(t, "", "scan", "results", testScan, "--team", testTeam, "--save", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Insecure HTTP")
	assert.Contains(t, out, "1 suspicious script detected")
	assert.Contains(t, out, "Results saved to")

	matches, err := filepath.Glob(filepath.Join(outDir, "example.com_*", "results.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestScanWatch(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scans/teams/"+testTeam+"/scans/"+testScan, func(w http.ResponseWriter, r *http.Request) {
		scan := completeScan()
		if fetches.Add(1) <= 2 {
			scan.Status = schema.StatusProcessing
		}
		_ = json.NewEncoder(w).Encode(scan)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	out, err := run(t, "", "scan", "watch", testScan, "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "Waiting for scan")
	assert.Contains(t, out, "Scan "+testScan)
	// three polls plus the fetch that renders the results
	assert.Equal(t, int32(4), fetches.Load())
}

func TestScanWatch_Failed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scans/teams/"+testTeam+"/scans/"+testScan, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scan_id":"` + testScan + `","status":"failed"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	_, err := run(t, "", "scan", "watch", testScan, "--team", testTeam)
	assert.ErrorContains(t, err, "failed")
}

func TestTeamsUse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/teams", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"` + testTeam + `","name":"Blue"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	session := setup(t, srv)

	out, err := run(t, "", "teams", "use", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "Active team: Blue")

	raw, err := os.ReadFile(session)
	require.NoError(t, err)
	assert.Contains(t, string(raw), testTeam)

	_, err = run(t, "", "teams", "use", "3b241101-e2bb-4255-8caf-4136c566a962")
	assert.ErrorContains(t, err, "not a member")
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/pair", func(w http.ResponseWriter, r *http.Request) {
		var creds schema.Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "pw", creds.Password)
		_, _ = w.Write([]byte(`{"access":"A","refresh":"R"}`))
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","memberships":[{"team_id":"` + testTeam + `","team_name":"Blue","role":"admin"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	session := setup(t, srv)
	require.NoError(t, os.Remove(session))

	out, err := run(t, "pw\n", "login", "--email", "a@b.c")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as a@b.c")

	raw, err := os.ReadFile(session)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"access": "A"`)
	assert.Contains(t, string(raw), testTeam)
}

func TestNoActiveTeam(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	setup(t, srv)
	_, err := run(t, "", "scan", "list")
	assert.ErrorContains(t, err, "no active team selected")
}

func TestHelpers(t *testing.T) {
	got, err := normalizeTarget("example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path", got)
	_, err = normalizeTarget("ftp://example.com")
	assert.Error(t, err)

	id, err := parseID("scan", strings.ToUpper(testScan))
	require.NoError(t, err)
	assert.Equal(t, testScan, id)
	_, err = parseID("scan", "123")
	assert.ErrorContains(t, err, "invalid scan id")

	r := strings.NewReader("first\r\nsecond")
	a, err := readLine(r)
	require.NoError(t, err)
	b, err := readLine(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, []string{a, b})
	_, err = readLine(r)
	assert.Error(t, err)
}

func TestCurrentUser_Cached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c"}`))
	}))
	defer srv.Close()

	a := &app{
		client: apiclient.New(apiclient.Options{BaseURL: srv.URL}, store.NewMemoryTokens("tok", "")),
		user:   &store.UserStore{},
	}
	for i := 0; i < 2; i++ {
		u, err := a.currentUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", u.Email)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestWhoami(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","memberships":[{"team_id":"` + testTeam + `","team_name":"Blue","role":"admin"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	out, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "a@b.c")
	assert.Contains(t, out, "Blue")
}

func TestMembersCommands(t *testing.T) {
	base := "/api/users/team/" + testTeam
	var patched, invited string
	mux := http.NewServeMux()
	mux.HandleFunc(base+"/members", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"u1","email":"ann@example.com","role":"admin"}]`))
	})
	mux.HandleFunc(base+"/members/"+testScan, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			patched = body["role"]
			_, _ = w.Write([]byte(`{"id":"` + testScan + `","email":"bob@example.com","role":"` + patched + `"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc(base+"/invite", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		invited = body["email"] + "/" + body["role"]
		_, _ = w.Write([]byte(`{"id":"u3","email":"` + body["email"] + `","role":"` + body["role"] + `"}`))
	})
	mux.HandleFunc(base+"/search-users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bo", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"id":"u9","email":"bob@example.com"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	out, err := run(t, "", "members", "list", "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "ann@example.com")

	out, err = run(t, "", "members", "search", "bo", "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "bob@example.com")

	out, err = run(t, "", "members", "invite", "cat@example.com", "--role", "requestor", "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "Added cat@example.com as requestor")
	assert.Equal(t, "cat@example.com/requestor", invited)

	out, err = run(t, "", "members", "role", testScan, "--role", "viewer", "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "bob@example.com is now viewer")
	assert.Equal(t, "viewer", patched)

	out, err = run(t, "", "members", "remove", testScan, "--team", testTeam)
	require.NoError(t, err)
	assert.Contains(t, out, "Member removed.")

	_, err = run(t, "", "members", "invite", "cat@example.com", "--role", "owner", "--team", testTeam)
	assert.ErrorContains(t, err, "please provide --role")
}

func TestAnalyticsCommand(t *testing.T) {
	base := "/api/scans/teams/" + testTeam + "/analytics"
	mux := http.NewServeMux()
	mux.HandleFunc(base+"/overview", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_scans":42,"success_rate_pct":97.5}`))
	})
	mux.HandleFunc(base+"/timeseries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("window_days"))
		_, _ = w.Write([]byte(`{"points":[{"date":"2025-06-01","count":3}]}`))
	})
	mux.HandleFunc(base+"/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"name":"complete","count":40}]}`))
	})
	mux.HandleFunc(base+"/top-domains", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"items":[{"name":"example.com","count":12}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	out, err := run(t, "", "analytics", "--team", testTeam, "--window-days", "7", "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "97.5%")
	assert.Contains(t, out, "2025-06-01")
	assert.Contains(t, out, "example.com")
}

func TestSettingsCommands(t *testing.T) {
	allow := true
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var in schema.SiteSettings
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			allow = in.AllowRegistration
		}
		_ = json.NewEncoder(w).Encode(schema.SiteSettings{AllowRegistration: allow})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setup(t, srv)

	out, err := run(t, "", "settings", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "allow_registration: true")

	out, err = run(t, "", "settings", "set", "allow_registration", "false")
	require.NoError(t, err)
	assert.Contains(t, out, "allow_registration: false")
	assert.False(t, allow)

	_, err = run(t, "", "settings", "set", "allow_registration", "maybe")
	assert.ErrorContains(t, err, "true or false")
	_, err = run(t, "", "settings", "set", "theme", "dark")
	assert.ErrorContains(t, err, "unknown setting")
}
