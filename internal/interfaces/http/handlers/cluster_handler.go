package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

type ReplaceClustersRequest struct {
	Clusters []cluster.Cluster `json:"clusters"`
}

type SetTopicsRequest struct {
	Topics []string `json:"topics"`
}

// RegistryResponse is the registry as cluster-file content plus the
// generation it was read at.
type RegistryResponse struct {
	Generation uint64            `json:"generation"`
	Clusters   []cluster.Cluster `json:"clusters"`
	Topics     []string          `json:"topics"`
	Undefined  []string          `json:"undefined_clusters"`
}

// ClusterHandler edits the shared topic cluster registry.
type ClusterHandler struct {
	svc analysis.Service
}

func NewClusterHandler(svc analysis.Service) *ClusterHandler {
	return &ClusterHandler{svc: svc}
}

// Get handles GET /api/v1/clusters.
func (h *ClusterHandler) Get(c *gin.Context) {
	respond(c, http.StatusOK, h.registry(c))
}

// Replace handles PUT /api/v1/clusters.
func (h *ClusterHandler) Replace(c *gin.Context) {
	var req ReplaceClustersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeInvalidCluster, "invalid request body"))
		return
	}
	if err := h.svc.ReplaceClusters(c.Request.Context(), req.Clusters); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, h.registry(c))
}

// SetTopics handles PUT /api/v1/topics.
func (h *ClusterHandler) SetTopics(c *gin.Context) {
	var req SetTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}
	if err := h.svc.SetTopics(c.Request.Context(), req.Topics); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, h.registry(c))
}

func (h *ClusterHandler) registry(c *gin.Context) RegistryResponse {
	snap := h.svc.Registry().Snapshot()
	f := cluster.Export(snap)
	resp := RegistryResponse{
		Generation: snap.Generation(),
		Clusters:   f.Clusters,
		Topics:     f.Topics,
		Undefined:  snap.UndefinedClusters(),
	}
	if resp.Clusters == nil {
		resp.Clusters = []cluster.Cluster{}
	}
	if resp.Topics == nil {
		resp.Topics = []string{}
	}
	if resp.Undefined == nil {
		resp.Undefined = []string{}
	}
	return resp
}
