package sonar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

func TestClient_StartProcess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"processId":"p-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	raw, err := c.StartProcess(context.Background(), StartRequest{
		TokenAddress:     "tok",
		Balance:          100,
		IsSimulation:     true,
		InitialMarketCap: 1000,
		RecommenderID:    "rec-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "/elizaos-sol/startProcess", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.JSONEq(t, `{"processId":"p-1"}`, string(raw))

	assert.Equal(t, "tok", gotBody["tokenAddress"])
	assert.Equal(t, true, gotBody["isSimulation"])
	assert.EqualValues(t, 1000, gotBody["initial_mc"])
	assert.Equal(t, "rec-1", gotBody["sell_recommender_id"])
}

func TestClient_StopProcess(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	require.NoError(t, c.StopProcess(context.Background(), "tok"))

	assert.Equal(t, "/elizaos-sol/stopProcess", gotPath)
	assert.Equal(t, map[string]string{"tokenAddress": "tok"}, gotBody)
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	_, err := c.StartProcess(context.Background(), StartRequest{TokenAddress: "tok"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteBackend)
	assert.Contains(t, err.Error(), "503")

	require.ErrorIs(t, c.StopProcess(context.Background(), "tok"), domain.ErrRemoteBackend)
}

func TestClient_TransportFailureIsRemoteBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, "secret")
	_, err := c.StartProcess(context.Background(), StartRequest{TokenAddress: "tok"})

	assert.ErrorIs(t, err, domain.ErrRemoteBackend)
}
