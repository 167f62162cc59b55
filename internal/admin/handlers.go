// Package admin is a read-only HTTP introspection surface over a running
// cluster: network metrics (§4.B "total request count, total bytes"),
// per-replica store/dedup sizes, and server/shard membership. It never sits
// on the RPC path -- that path is the in-process simulated Network -- this
// is a debugging aid in the same spirit as the teacher lineage's /health
// endpoint.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/cluster"
)

// Handler renders a Cluster's state as JSON.
type Handler struct {
	cluster *cluster.Cluster
}

// NewHandler builds a Handler over c.
func NewHandler(c *cluster.Cluster) *Handler {
	return &Handler{cluster: c}
}

// Register mounts this handler's routes on router.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/metrics", h.metrics)
	router.GET("/servers", h.servers)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type metricsResponse struct {
	TotalRequestCount int64          `json:"total_request_count"`
	TotalBytes        int64          `json:"total_bytes"`
	Servers           []serverMetric `json:"servers"`
}

type serverMetric struct {
	ID        int `json:"id"`
	ShardID   int `json:"shard_id"`
	StoreSize int `json:"store_size"`
	DedupSize int `json:"dedup_size"`
}

func (h *Handler) metrics(c *gin.Context) {
	resp := metricsResponse{
		TotalRequestCount: h.cluster.Net.TotalCount(),
		TotalBytes:        h.cluster.Net.TotalBytes(),
	}
	for _, info := range h.cluster.Servers() {
		kv := h.cluster.Server(info.ID)
		if kv == nil {
			continue
		}
		resp.Servers = append(resp.Servers, serverMetric{
			ID:        info.ID,
			ShardID:   info.ShardID,
			StoreSize: kv.StoreSize(),
			DedupSize: kv.DedupSize(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) servers(c *gin.Context) {
	c.JSON(http.StatusOK, h.cluster.Servers())
}
