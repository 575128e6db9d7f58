package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondBindingError reports a request body or query that failed binding
func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondServiceError maps a service failure onto the error envelope
func respondServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var serviceErr *services.Error
	var uploadErr *utils.FileUploadError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": gin.H{validationErr.Field: validationErr.Message},
			},
		})
	case errors.As(err, &serviceErr):
		respondError(c, serviceErr.Status, serviceErr.Code, serviceErr.Message)
	case errors.As(err, &uploadErr):
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

// currentUserID reads the authenticated user id, writing a 401 when it is missing
func currentUserID(c *gin.Context) (uint, bool) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return 0, false
	}
	return userID, true
}

// uintParam parses a positive numeric path parameter, writing a 400 when it is invalid
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
