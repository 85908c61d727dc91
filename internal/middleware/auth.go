// internal/middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	ContextAuthID  = "auth_id"
	ContextEmail   = "email"
	ContextProfile = "profile"
)

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		token, ok := bearerToken(authHeader)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		c.Set(ContextAuthID, claims.Subject)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired. It loads the caller's profile
// and rejects anyone whose profile is missing or not an admin.
func AdminRequired(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authID, ok := utils.GetAuthIDFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		profile, err := LoadProfile(db, authID)
		if err != nil {
			logrus.WithError(err).WithField("auth_id", authID).Error("Failed to load profile")
			utils.InternalErrorResponse(c, "Failed to load profile", err.Error())
			c.Abort()
			return
		}

		if !profile.IsAdmin() {
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyAdminAccessDenied))
			c.Abort()
			return
		}

		c.Set(ContextProfile, profile)
		c.Next()
	}
}

// LoadProfile returns the profile for authID, or nil when none exists.
func LoadProfile(db *gorm.DB, authID string) (*models.Profile, error) {
	var profile models.Profile
	if err := db.Where("auth_id = ?", authID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := utils.ValidateJWT(token)
		if err != nil {
			c.Next()
			return
		}

		// Set user info in context if token is valid
		c.Set(ContextAuthID, claims.Subject)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
