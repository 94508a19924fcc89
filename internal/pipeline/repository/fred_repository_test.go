package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/pkg/logger"
)

func newRepoTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	return log
}

func TestFREDFetchEndpointAndParsing(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"observations":[
			{"date":"2026-08-20","value":"3.15"},
			{"date":"2026-08-21","value":"."},
			{"date":"2026-08-24","value":"3.20"}
		]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{FRED: config.FRED{BaseURL: srv.URL, APIKey: "test-key"}}
	repo := NewFREDRepository(cfg, newRepoTestLogger(t))

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	obs, err := repo.Fetch(context.Background(), "BAMLH0A0HYM2", since)
	require.NoError(t, err)

	assert.Equal(t, "/fred/series/observations", gotPath)
	assert.Equal(t, []string{"BAMLH0A0HYM2"}, gotQuery["series_id"])
	assert.Equal(t, []string{"2026-08-01"}, gotQuery["observation_start"])

	// The "." placeholder row is dropped, the numeric rows survive.
	require.Len(t, obs, 2)
	assert.Equal(t, 3.15, obs[0].Value)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), obs[1].Date)
}

func TestFREDFetchMissingKeyFailsClosed(t *testing.T) {
	cfg := &config.Config{FRED: config.FRED{BaseURL: "http://127.0.0.1:0"}}
	repo := NewFREDRepository(cfg, newRepoTestLogger(t))

	_, err := repo.Fetch(context.Background(), "NFCI", time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
}
