// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GET /me
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := currentProfile(c, h.userService)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile == nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	utils.SuccessResponse(c, profile)
}

// PUT /me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	authID, ok := utils.GetAuthIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	// Make sure the mirror exists before updating it.
	if _, err := currentProfile(c, h.userService); err != nil {
		respondError(c, err)
		return
	}

	profile, err := h.userService.UpdateProfile(authID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProfileUpdated),
		"profile": profile,
	})
}
