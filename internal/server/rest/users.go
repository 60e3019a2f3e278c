package rest

import (
	"net/http"

	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateRequest struct {
	Username           string         `json:"username"`
	ProfileDescription string         `json:"profileDescription"`
	Settings           map[string]any `json:"settings"`
	Password           string         `json:"password"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	res, err := s.users.Register(c.Request.Context(), services.RegisterRequest{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{"message": res.Message, "uid": res.UID, "username": res.Username}
	if res.StoreError != "" {
		body["firestoreError"] = res.StoreError
	}
	if res.ServerFallback {
		body["serverFallback"] = true
	}
	c.JSON(http.StatusCreated, body)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	res, err := s.users.Login(c.Request.Context(), services.LoginRequest{Username: req.Username, Password: req.Password})
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{"message": res.Message, "uid": res.UID, "username": res.Username}
	if res.Token != "" {
		body["token"] = res.Token
	}
	if res.ExpiresAt != nil {
		body["expiresAt"] = res.ExpiresAt
	}
	if res.ServerFallback {
		body["serverFallback"] = true
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listUsers(c *gin.Context) {
	views, err := s.users.ListProfiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) filterUsers(c *gin.Context) {
	views, err := s.users.FilterProfiles(c.Request.Context(), c.Query("provider"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) sortUsers(c *gin.Context) {
	views, err := s.users.SortProfilesByUsernameDesc(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) getUser(c *gin.Context) {
	view, err := s.users.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateUser(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	res, err := s.users.UpdateProfile(c.Request.Context(), c.Param("id"), services.UpdateRequest{
		Username:           req.Username,
		ProfileDescription: req.ProfileDescription,
		Settings:           req.Settings,
		Password:           req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{"id": res.ID, "updatedAt": res.UpdatedAt, "message": "User updated successfully"}
	if res.Username != "" {
		body["username"] = res.Username
	}
	if res.ProfileDescription != "" {
		body["profileDescription"] = res.ProfileDescription
	}
	if len(res.Settings) > 0 {
		body["settings"] = res.Settings
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) deleteUser(c *gin.Context) {
	res, err := s.users.DeleteProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID, "message": "User deleted successfully"})
}
