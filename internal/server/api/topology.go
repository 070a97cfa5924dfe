package api

import (
	"net/http"

	"github.com/ayusman/holistic/internal/landmark"
)

type kindInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Score bool   `json:"score_entry"`
}

type topologyResponse struct {
	Kinds []kindInfo            `json:"kinds"`
	Pose  []landmark.Connection `json:"pose"`
	Hand  []landmark.Connection `json:"hand"`
}

// TopologyHandler serves the landmark counts and skeleton lines a renderer
// needs to draw snapshots.
func TopologyHandler() http.Handler {
	resp := topologyResponse{
		Pose: landmark.PoseConnections,
		Hand: landmark.HandConnections,
	}
	for _, k := range landmark.Kinds {
		resp.Kinds = append(resp.Kinds, kindInfo{
			Name:  k.String(),
			Count: landmark.Count(k),
			Score: k.HasScoreEntry(),
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
