package controllers

import (
	"net/http"

	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

// GetMyProfile handles GET /api/v1/users/me
func GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := accountService().GetUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - partial update of user and profile fields
func UpdateMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form services.ProfileForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := accountService().UpdateProfile(c.Request.Context(), userID, form)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}
