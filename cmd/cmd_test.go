package cmd

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
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/zoombulk/internal/bulk"
	"github.com/teemow/zoombulk/internal/cache"
	"github.com/teemow/zoombulk/internal/config"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/table"
)

// useConfig installs cfg and a discarding logger for the duration of a test.
func useConfig(t *testing.T, c config.Config) {
	t.Helper()
	t.Setenv("INSTRUMENTATION_ENABLED", "false")

	prevCfg, prevLogger := cfg, logger
	cfg, logger = c, logging.New(io.Discard, "debug", "text")
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
}

func testConfig() config.Config {
	return config.Config{
		CacheBackend:      config.BackendMemory,
		MaxConcurrency:    10,
		UsersCacheTTL:     time.Hour,
		TokenSafetyMargin: 5 * time.Minute,
		DefaultTimezone:   "UTC",
	}
}

// fakeZoom serves the token endpoint and the parts of the API zoombulk uses.
type fakeZoom struct {
	mu         sync.Mutex
	exchanges  int
	userLists  int
	meetingFor []string
}

func (f *fakeZoom) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.exchanges++
		f.mu.Unlock()
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "account_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`)
	})

	mux.HandleFunc("GET /v2/users", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.userLists++
		f.mu.Unlock()
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"page_count":1,"page_number":1,"users":[{"id":"u-jane","email":"Jane@Example.com"}]}`)
	})

	mux.HandleFunc("POST /v2/users/{id}/meetings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.meetingFor = append(f.meetingFor, r.PathValue("id"))
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if body["topic"] == "Broken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":300,"message":"Invalid meeting start time"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       123,
			"topic":    body["topic"],
			"join_url": "https://zoom.us/j/123",
			"password": "abc",
		})
	})

	return mux
}

const testPlan = `
columns:
  Meeting Topic: topic
  Host: host_email
start_time:
  date_column: Meeting Date
  time_column: Meeting Time
duration:
  hours_column: Duration Hr
  minutes_column: Duration Min
skip_if_empty: Meeting Date
`

const testInput = `Meeting Topic,Host,Meeting Date,Meeting Time,Duration Hr,Duration Min
Kickoff,jane@example.com,2024-05-01 00:00:00,9:30 AM,1,0
Broken,jane@example.com,2024-05-02,10:00 AM,0,30
Skipped,jane@example.com,,,,
Mine,,2024-05-03,11:00 AM,,45
`

func writeFiles(t *testing.T) (dir, input, plan string) {
	t.Helper()
	dir = t.TempDir()
	input = filepath.Join(dir, "meetings.csv")
	plan = filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(input, []byte(testInput), 0o600))
	require.NoError(t, os.WriteFile(plan, []byte(testPlan), 0o600))
	return dir, input, plan
}

func TestRunBulkCreate(t *testing.T) {
	fake := &fakeZoom{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := testConfig()
	c.AccountID, c.ClientID, c.ClientSecret = "acct", "client", "secret"
	c.TokenURL = srv.URL + "/oauth/token"
	c.APIBaseURL = srv.URL + "/v2"
	useConfig(t, c)

	dir, input, plan := writeFiles(t)
	reportFile := filepath.Join(dir, "report.json")

	var out bytes.Buffer
	err := runBulkCreate(context.Background(), &out, input, bulkCreateFlags{
		planFile:          plan,
		reportFile:        reportFile,
		maxConcurrency:    2,
		requestsPerSecond: -1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 rows failed")

	assert.Equal(t, 1, fake.exchanges)
	assert.Equal(t, 1, fake.userLists)
	assert.ElementsMatch(t, []string{"u-jane", "u-jane", "me"}, fake.meetingFor)

	f, err := os.Open(filepath.Join(dir, "meetings.out.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := table.ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "https://zoom.us/j/123", rows[0].String("Meeting URL"))
	assert.Equal(t, "123", rows[0].String("Meeting ID"))
	assert.Equal(t, "abc", rows[0].String("Passcode"))
	assert.Equal(t, "2024-05-01 09:30:00", rows[0].String("start_time"))
	assert.Equal(t, "60", rows[0].String("duration"))
	assert.Empty(t, rows[1].String("Meeting URL"))
	assert.Equal(t, "Skipped", rows[2].String("Meeting Topic"))
	assert.Empty(t, rows[2].String("Meeting URL"))
	assert.Equal(t, "https://zoom.us/j/123", rows[3].String("Meeting URL"))

	data, err := os.ReadFile(reportFile)
	require.NoError(t, err)
	var report struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
		Skipped    int `json:"skipped"`
		Results    []struct {
			Row    int    `json:"row"`
			Status string `json:"status"`
			Kind   string `json:"kind"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.Results[1].Row)
	assert.Equal(t, "api", report.Results[1].Kind)

	assert.Contains(t, out.String(), "row 1 [api]")
}

func TestRunBulkCreate_DryRun(t *testing.T) {
	// no credentials and no server: a dry run never calls the API
	useConfig(t, testConfig())

	dir, input, plan := writeFiles(t)

	var out bytes.Buffer
	err := runBulkCreate(context.Background(), &out, input, bulkCreateFlags{
		planFile:          plan,
		reportFile:        "-",
		dryRun:            true,
		requestsPerSecond: -1,
	})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "meetings.out.csv"))
	assert.Contains(t, out.String(), `"dry_run": true`)
	assert.Contains(t, out.String(), "(dry run): 3 rows, 3 succeeded, 0 failed, 1 skipped")
	assert.Contains(t, out.String(), `host_email="jane@example.com"`)
	assert.Contains(t, out.String(), `start_time="2024-05-01T09:30:00"`)
}

func TestRunBulkCreate_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"reason":"Invalid client_id or client_secret","error":"invalid_client"}`)
	}))
	defer srv.Close()

	c := testConfig()
	c.AccountID, c.ClientID, c.ClientSecret = "acct", "client", "wrong"
	c.TokenURL = srv.URL + "/oauth/token"
	c.APIBaseURL = srv.URL + "/v2"
	useConfig(t, c)

	dir, input, plan := writeFiles(t)

	err := runBulkCreate(context.Background(), io.Discard, input, bulkCreateFlags{planFile: plan, requestsPerSecond: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
	assert.NoFileExists(t, filepath.Join(dir, "meetings.out.csv"))
}

func TestRunBulkCreate_MissingCredentials(t *testing.T) {
	useConfig(t, testConfig())
	_, input, _ := writeFiles(t)

	err := runBulkCreate(context.Background(), io.Discard, input, bulkCreateFlags{requestsPerSecond: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBulkOptions(t *testing.T) {
	c := testConfig()
	c.MaxConcurrency = 4
	c.RequestsPerSecond = 2
	c.DefaultTimezone = "Europe/Berlin"

	opts := bulkOptions(bulk.DefaultPlan(), c, bulkCreateFlags{requestsPerSecond: -1})
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.Equal(t, 2.0, opts.RequestsPerSecond)
	assert.Equal(t, "Europe/Berlin", opts.DefaultTimezone)

	opts = bulkOptions(bulk.DefaultPlan(), c, bulkCreateFlags{maxConcurrency: 7, requestsPerSecond: 0, dryRun: true})
	assert.Equal(t, 7, opts.MaxConcurrency)
	assert.Zero(t, opts.RequestsPerSecond)
	assert.True(t, opts.DryRun)
}

func TestNewApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	c := testConfig()
	c.CacheBackend = config.BackendRedis
	c.RedisURL = "redis://" + mr.Addr()
	useConfig(t, c)

	a, err := newApp(context.Background(), cfg, logger, appOptions{})
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	require.IsType(t, &cache.RedisStore{}, a.store)
	require.NoError(t, a.store.Set(context.Background(), "k", "v", time.Minute))

	var got string
	assert.True(t, a.store.Get(context.Background(), "k", &got))
	assert.Equal(t, "v", got)
	assert.Nil(t, a.tokens, "API components are only wired on request")
}

func TestNewApp_FileBackend(t *testing.T) {
	c := testConfig()
	c.CacheBackend = config.BackendFile
	c.CacheDir = filepath.Join(t.TempDir(), "cache")
	useConfig(t, c)

	a, err := newApp(context.Background(), cfg, logger, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	assert.DirExists(t, c.CacheDir)
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Equal(t, "zoombulk version 1.2.3\n", out.String())
}

func TestPrintUsers(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printUsers(&out, map[string]string{"b@x.io": "2", "a@x.io": "1"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "a@x.io"))
	assert.True(t, strings.HasSuffix(lines[2], "2"))
}
