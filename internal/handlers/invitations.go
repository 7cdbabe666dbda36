package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// InvitationHandler exposes the staff invitation lifecycle. All routes except
// Accept sit behind the admin gate.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler configures an invitation handler.
func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type sendInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type acceptInvitationRequest struct {
	Token string `json:"token" validate:"required"`
}

type invitationDTO struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	InvitedBy  string     `json:"invited_by,omitempty"`
	Inviter    string     `json:"inviter,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	Status     string     `json:"status"`
}

func toInvitationDTO(invitation *models.Invitation, now time.Time) invitationDTO {
	dto := invitationDTO{
		ID:         invitation.ID,
		Email:      invitation.Email,
		InvitedBy:  invitation.InvitedBy,
		CreatedAt:  invitation.CreatedAt,
		ExpiresAt:  invitation.ExpiresAt,
		AcceptedAt: invitation.AcceptedAt,
		Status:     invitation.Status(now),
	}
	if invitation.Inviter != nil {
		dto.Inviter = invitation.Inviter.Name
	}
	return dto
}

// Send creates an invitation and emails the link.
// POST /api/admin/invitations
func (h *InvitationHandler) Send(c *gin.Context) {
	var req sendInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitedBy := c.GetString(middleware.CtxUserIDKey)
	invitation, err := h.invitations.Send(requestContext(c), req.Email, invitedBy)
	if err != nil && !errors.Is(err, services.ErrNotificationFailed) {
		response.Error(c, invitationError(err))
		return
	}

	payload := gin.H{"invitation": toInvitationDTO(invitation, time.Now())}
	if errors.Is(err, services.ErrNotificationFailed) {
		// Row is persisted; admin can retry delivery with resend.
		payload["delivery"] = "failed"
	}
	response.Success(c, http.StatusCreated, payload)
}

// Resend re-delivers the original link and pushes the expiry forward.
// POST /api/admin/invitations/resend
func (h *InvitationHandler) Resend(c *gin.Context) {
	var req sendInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invitations.Resend(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, invitationError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitation": toInvitationDTO(invitation, time.Now())})
}

// Pending lists open invitations, newest first.
// GET /api/admin/invitations/pending
func (h *InvitationHandler) Pending(c *gin.Context) {
	h.list(c, h.invitations.Pending)
}

// Accepted lists redeemed invitations, most recently accepted first.
// GET /api/admin/invitations/accepted
func (h *InvitationHandler) Accepted(c *gin.Context) {
	h.list(c, h.invitations.Accepted)
}

// Revoke withdraws an invitation and demotes the stale grant if it was
// already redeemed.
// DELETE /api/admin/invitations/:id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.invitations.Revoke(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, invitationError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Accept redeems an invitation token for an existing account. Public route;
// the invitee signed up (or signs in) through the normal flow first.
// POST /api/invitations/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req acceptInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invitations.Accept(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, invitationError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitation": toInvitationDTO(invitation, time.Now())})
}

func (h *InvitationHandler) list(c *gin.Context, fetch func(ctx context.Context) ([]models.Invitation, error)) {
	invitations, err := fetch(requestContext(c))
	if err != nil {
		response.Error(c, invitationError(err))
		return
	}

	now := time.Now()
	dtos := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		dtos = append(dtos, toInvitationDTO(&invitations[i], now))
	}
	response.Success(c, http.StatusOK, gin.H{"invitations": dtos})
}

// invitationError maps service sentinels onto API error envelopes. Token
// rejections share one answer so callers cannot probe invitation state.
func invitationError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvitationExists):
		return appErrors.ErrConflict
	case errors.Is(err, services.ErrInvitationNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrInvitationInvalid):
		return appErrors.ErrInviteInvalidOrExpired
	case errors.Is(err, services.ErrInvitationRevoked):
		return appErrors.NewInvalidOperation("invitation is already revoked")
	case errors.Is(err, services.ErrInviteeNotFound):
		return appErrors.NewBadRequest("no account exists for the invited email")
	case errors.Is(err, services.ErrNotificationFailed):
		return appErrors.ErrExternalService
	default:
		return err
	}
}
