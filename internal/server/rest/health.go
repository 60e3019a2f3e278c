package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status                string `json:"status"`
	Environment           string `json:"environment"`
	FirebaseAPIKeyPresent bool   `json:"firebaseApiKeyPresent"`
	ServiceAccountLoaded  bool   `json:"serviceAccountLoaded"`
	RecordStoreState      string `json:"recordStoreState"`
	DocumentStoreReady    bool   `json:"documentStoreReady"`
	BufferedHistory       int    `json:"bufferedHistory"`
	Timestamp             string `json:"timestamp"`
}

// health is read-only and always answers 200.
func (s *Server) health(c *gin.Context) {
	a := s.status.Availability()
	c.JSON(http.StatusOK, healthResponse{
		Status:                "ok",
		Environment:           s.opts.Environment,
		FirebaseAPIKeyPresent: s.opts.WebKeyPresent,
		ServiceAccountLoaded:  a.Identity,
		RecordStoreState:      s.status.RecordStoreState(),
		DocumentStoreReady:    a.Documents,
		BufferedHistory:       s.history.Buffered(),
		Timestamp:             s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}
