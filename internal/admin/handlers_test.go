package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/cluster"
)

func newTestRouter(t *testing.T) (*gin.Engine, *cluster.Cluster) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := cluster.New(2, 2)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	router := gin.New()
	router.Use(Logger(), Recovery())
	NewHandler(c).Register(router)
	return router, c
}

func TestHealthReportsOK(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServersListsEveryReplica(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"shard_id"`)

	var infos []cluster.ServerInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 4) // 2 shards x 2 replicas
}

func TestMetricsReflectsClerkActivity(t *testing.T) {
	router, c := newTestRouter(t)
	ck := c.NewClerk()
	ck.Put("0", "A")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_request_count"`)
	require.Contains(t, w.Body.String(), `"store_size"`)

	var resp metricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Positive(t, resp.TotalRequestCount)
	require.Len(t, resp.Servers, 4)
	require.Equal(t, 1, resp.Servers[0].StoreSize) // key "0" lives on shard 0, primary server 0
}
