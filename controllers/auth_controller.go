package controllers

import (
	"net/http"
	"time"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/metrics"
	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoginRequest is the login payload. Login may be an email, a phone number or a username.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func accountService() *services.AccountService {
	var admins []string
	if cfg := config.GetConfig(); cfg != nil {
		admins = cfg.AdminEmails
	}
	return services.NewAccountService(config.GetDB(), admins...)
}

// mergeSessionCart moves the visitor's session cart into the user's cart.
// The session cart is cleared even when the merge fails.
func mergeSessionCart(c *gin.Context, userID uint) {
	store := services.GetSessionStore()
	sessionID := middleware.GetSessionID(c)
	if store == nil || sessionID == "" {
		return
	}

	ctx := c.Request.Context()
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID})

	session, err := store.Load(ctx, sessionID)
	if err != nil {
		log.WithError(err).Warn("Failed to load session cart")
	} else if len(session) > 0 {
		if _, err := services.NewCartService(config.GetDB()).MergeSessionCart(ctx, userID, session); err != nil {
			metrics.SessionCartMerges.WithLabelValues("failed").Inc()
			log.WithError(err).Error("Failed to merge session cart")
		} else {
			metrics.SessionCartMerges.WithLabelValues("merged").Inc()
			log.WithField("entries", len(session)).Info("Merged session cart")
		}
	}

	if err := store.Clear(ctx, sessionID); err != nil {
		log.WithError(err).Warn("Failed to clear session cart")
	}
}

func respondWithToken(c *gin.Context, status int, user *models.User) {
	tokens := services.GetTokenService()
	if tokens == nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Token service is not configured")
		return
	}

	token, expiresAt, err := tokens.Issue(user)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, status, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// Register handles POST /api/v1/auth/register
func Register(c *gin.Context) {
	var form services.RegisterForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := accountService().Register(c.Request.Context(), form)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	mergeSessionCart(c, user.ID)
	respondWithToken(c, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := accountService().Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	mergeSessionCart(c, user.ID)
	respondWithToken(c, http.StatusOK, user)
}
