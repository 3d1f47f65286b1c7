package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/identity"
)

type SessionManager interface {
	SessionResolver
	Create(ctx context.Context, userID int64) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

type CookieOptions struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	identity identity.IdentityUseCase
	sessions SessionManager
	cookie   CookieOptions
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      userResponse `json:"user"`
}

type meResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
}

func NewAuthHandler(identity identity.IdentityUseCase, sessions SessionManager, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{identity: identity, sessions: sessions, cookie: cookie}
}

func (h *AuthHandler) Register(router *gin.RouterGroup) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/logout", h.logout)
	router.GET("/me", h.me)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}

	user, err := h.identity.Register(c.Request.Context(), identity.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "full_name and password are required")
		return
	}

	user, err := h.identity.Authenticate(c.Request.Context(), req.FullName, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	token, expires, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(time.Until(expires).Seconds()), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		User:      toUserResponse(user),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	if token := sessionToken(c, h.cookie.Name); token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			writeError(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

func (h *AuthHandler) me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, meResponse{Authenticated: false})
		return
	}

	user, err := h.identity.Profile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	profile := toUserResponse(user)
	c.JSON(http.StatusOK, meResponse{Authenticated: true, User: &profile})
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{ID: user.ID, FullName: user.FullName, Email: user.Email}
}
