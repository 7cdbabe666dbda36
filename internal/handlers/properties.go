package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// PropertyHandler serves the public catalogue and the agent listing surface.
type PropertyHandler struct {
	properties *services.PropertyService
	users      *services.UserService
}

// NewPropertyHandler configures a property handler.
func NewPropertyHandler(properties *services.PropertyService, users *services.UserService) *PropertyHandler {
	return &PropertyHandler{properties: properties, users: users}
}

type createPropertyRequest struct {
	Title       string         `json:"title" validate:"required,max=256"`
	Description string         `json:"description"`
	Price       int64          `json:"price" validate:"required,gt=0"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	Bedrooms    int            `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms   int            `json:"bathrooms" validate:"omitempty,gte=0"`
	AreaSqm     float64        `json:"area_sqm" validate:"omitempty,gt=0"`
	AddressLine string         `json:"address_line" validate:"omitempty,max=256"`
	City        string         `json:"city" validate:"required,max=128"`
	PostalCode  string         `json:"postal_code" validate:"omitempty,max=16"`
	Country     string         `json:"country" validate:"required,len=2"`
	Attributes  map[string]any `json:"attributes"`
	Photos      []string       `json:"photos" validate:"omitempty,dive,max=512"`
}

type updatePropertyRequest struct {
	Title       *string                `json:"title" validate:"omitempty,max=256"`
	Description *string                `json:"description"`
	Price       *int64                 `json:"price" validate:"omitempty,gt=0"`
	Bedrooms    *int                   `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms   *int                   `json:"bathrooms" validate:"omitempty,gte=0"`
	AreaSqm     *float64               `json:"area_sqm" validate:"omitempty,gt=0"`
	Status      *models.PropertyStatus `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE SOLD ARCHIVED"`
	Attributes  map[string]any         `json:"attributes"`
	Photos      []string               `json:"photos" validate:"omitempty,dive,max=512"`
}

// ListActive returns publicly visible listings with optional filters.
// GET /api/properties
func (h *PropertyHandler) ListActive(c *gin.Context) {
	opts := services.ListPropertiesOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
		Filters: services.PropertyFilters{
			City:        c.Query("city"),
			MinPrice:    int64(parseIntQuery(c, "min_price", 0)),
			MaxPrice:    int64(parseIntQuery(c, "max_price", 0)),
			MinBedrooms: parseIntQuery(c, "min_bedrooms", 0),
		},
	}

	properties, total, err := h.properties.ListActive(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"properties": properties}, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PerPage,
		Total:   total,
	})
}

// GetBySlug returns one active listing.
// GET /api/properties/:slug
func (h *PropertyHandler) GetBySlug(c *gin.Context) {
	property, err := h.properties.GetBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, propertyError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"property": property})
}

// Create stores a new draft listing for the calling agent.
// POST /api/properties
func (h *PropertyHandler) Create(c *gin.Context) {
	var req createPropertyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	owner, err := h.users.GetByID(requestContext(c), callerID(c))
	if err != nil {
		response.Error(c, profileError(err))
		return
	}

	property, err := h.properties.Create(requestContext(c), owner, services.CreatePropertyInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		AreaSqm:     req.AreaSqm,
		AddressLine: req.AddressLine,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
		Attributes:  req.Attributes,
		Photos:      req.Photos,
	})
	if err != nil {
		response.Error(c, propertyError(err))
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"property": property})
}

// Update edits a listing's details or status.
// PATCH /api/properties/:id
func (h *PropertyHandler) Update(c *gin.Context) {
	var req updatePropertyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	property, err := h.properties.Update(requestContext(c), c.Param("id"), callerID(c), callerRole(c), services.UpdatePropertyInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		AreaSqm:     req.AreaSqm,
		Status:      req.Status,
		Attributes:  req.Attributes,
		Photos:      req.Photos,
	})
	if err != nil {
		response.Error(c, propertyError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"property": property})
}

// Delete removes a listing.
// DELETE /api/properties/:id
func (h *PropertyHandler) Delete(c *gin.Context) {
	if err := h.properties.Delete(requestContext(c), c.Param("id"), callerID(c), callerRole(c)); err != nil {
		response.Error(c, propertyError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Mine lists the caller's own listings in every status.
// GET /api/properties/mine
func (h *PropertyHandler) Mine(c *gin.Context) {
	properties, err := h.properties.ListByOwner(requestContext(c), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"properties": properties})
}

func propertyError(err error) error {
	switch {
	case errors.Is(err, services.ErrPropertyNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrPropertyForbidden):
		return appErrors.ErrForbidden
	case errors.Is(err, services.ErrListingNotAllowed):
		return appErrors.ErrForbidden
	default:
		return err
	}
}
