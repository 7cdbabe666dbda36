package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/services"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// ProfileHandler exposes current-user account endpoints.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler configures a profile handler.
func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type updateProfileRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=128"`
	Phone         *string `json:"phone" validate:"omitempty,phone"`
	Avatar        *string `json:"avatar" validate:"omitempty,max=512"`
	AgencyName    *string `json:"agency_name" validate:"omitempty,max=128"`
	LicenseNumber *string `json:"license_number" validate:"omitempty,max=64"`
}

// Me returns the authenticated user's account.
// GET /api/profile
func (h *ProfileHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, profileError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// Update modifies the authenticated user's profile details.
// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	user, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Avatar:        req.Avatar,
		AgencyName:    req.AgencyName,
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		response.Error(c, profileError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

func profileError(err error) error {
	if errors.Is(err, services.ErrUserNotFound) {
		return appErrors.ErrNotFound
	}
	return err
}
