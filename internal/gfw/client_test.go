package gfw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("secret", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestSearchVessel(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vessels/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "367596940", r.URL.Query().Get("query"))
		assert.Equal(t, IdentityDataset, r.URL.Query().Get("datasets[0]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"id":"abc","shipname":"TEST"}],"total":1}`))
	})

	entries, err := c.SearchVessel(context.Background(), "367596940")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["id"])
	assert.Equal(t, "TEST", entries[0]["shipname"])
}

func TestSearchVesselRequiresIdentifier(t *testing.T) {
	c, err := New("secret")
	require.NoError(t, err)
	_, err = c.SearchVessel(context.Background(), " ")
	assert.Error(t, err)
}

func TestFishingEvents(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "v-1", q.Get("vessels[0]"))
		assert.Equal(t, FishingEventsDataset, q.Get("datasets[0]"))
		assert.Equal(t, "2020-01-01", q.Get("start-date"))
		assert.Equal(t, "2020-02-01", q.Get("end-date"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "5", q.Get("offset"))
		_, _ = w.Write([]byte(`{"entries":[{"type":"fishing"},{"type":"fishing"}]}`))
	})

	entries, err := c.FishingEvents(context.Background(), EventsQuery{
		VesselID:  "v-1",
		StartDate: "2020-01-01",
		EndDate:   "2020-02-01",
		Offset:    5,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFishingEventsValidation(t *testing.T) {
	c, err := New("secret")
	require.NoError(t, err)

	_, err = c.FishingEvents(context.Background(), EventsQuery{})
	assert.Error(t, err)
	_, err = c.FishingEvents(context.Background(), EventsQuery{VesselID: "v", Offset: -1})
	assert.Error(t, err)
}

func TestEmptyEntries(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	entries, err := c.SearchVessel(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})
	_, err := c.SearchVessel(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSetToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	c, err := New("old")
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetToken("  "), ErrNoToken)
	assert.Equal(t, "old", c.Token())

	require.NoError(t, c.SetToken("new"))
	assert.Equal(t, "new", c.Token())
	assert.Equal(t, "new", os.Getenv(TokenEnv))
}

func TestResolveToken(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(TokenEnv, "from-env")
		tok, err := ResolveToken("flag", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "flag", tok)
		assert.Equal(t, "flag", os.Getenv(TokenEnv))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(TokenEnv, "from-env")
		tok, err := ResolveToken("", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", tok)
	})

	t.Run("prompt", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("typed\n"), 0o600))
		in, err := os.Open(path)
		require.NoError(t, err)
		defer in.Close()

		tok, err := ResolveToken("", in, nil)
		require.NoError(t, err)
		assert.Equal(t, "typed", tok)
		assert.Equal(t, "typed", os.Getenv(TokenEnv))
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		_, err := ResolveToken("", nil, nil)
		assert.ErrorIs(t, err, ErrNoToken)
	})
}
