package rest

import (
	"net/http"

	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	"github.com/gin-gonic/gin"
)

type appendRequest struct {
	UserID         string `json:"userId"`
	Word           string `json:"word"`
	PilosopoAnswer string `json:"pilosopoAnswer"`
	RealMeaning    string `json:"realMeaning"`
}

func (s *Server) appendHistory(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	e, err := s.history.Append(c.Request.Context(), services.AppendRequest{
		OwnerID:       req.UserID,
		Term:          req.Word,
		ResultText:    req.PilosopoAnswer,
		SecondaryText: req.RealMeaning,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) listHistory(c *gin.Context) {
	entries, err := s.history.List(c.Request.Context(), c.Query("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
