package api

import (
	"net/http"

	"github.com/ayusman/holistic/internal/pipeline"
)

// SnapshotSource returns the latest published snapshot.
type SnapshotSource interface {
	Snapshot() *pipeline.Snapshot
}

// SnapshotHandler serves GET /api/snapshot.
type SnapshotHandler struct {
	source SnapshotSource
}

func NewSnapshotHandler(source SnapshotSource) *SnapshotHandler {
	return &SnapshotHandler{source: source}
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.source.Snapshot()
	if snap == nil || snap.Seq == 0 {
		writeError(w, http.StatusNotFound, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
