package proxy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// staticModels is the fixed set of identifiers advertised to callers,
// beyond whatever the configuration names as the default.
var staticModels = []string{
	"kimi-k2-0711-preview",
	"kimi-k2-turbo-preview",
	"kimi-latest",
	"moonshot-v1-8k",
	"moonshot-v1-32k",
	"moonshot-v1-128k",
}

// handleModelList returns the static model listing.
func (s *Server) handleModelList(c *gin.Context) {
	seen := make(map[string]struct{}, len(staticModels)+1)
	ids := make([]string, 0, len(staticModels)+1)

	for _, id := range append([]string{s.cfg.DefaultModel}, staticModels...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	modelsList := make([]any, 0, len(ids))
	for _, id := range ids {
		modelsList = append(modelsList, map[string]any{
			"id":       id,
			"object":   "model",
			"created":  time.Now().Unix(),
			"owned_by": "moonshot",
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   modelsList,
	})
}
