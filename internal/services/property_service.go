package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
)

var (
	// ErrPropertyNotFound indicates the requested listing does not exist.
	ErrPropertyNotFound = errors.New("property: not found")
	// ErrPropertyForbidden signals the caller may not modify the listing.
	ErrPropertyForbidden = errors.New("property: not owned by caller")
	// ErrListingNotAllowed is returned when the owner's role may not hold listings.
	ErrListingNotAllowed = errors.New("property: role may not own listings")
)

// CreatePropertyInput describes a new listing.
type CreatePropertyInput struct {
	Title       string
	Description string
	Price       int64
	Currency    string
	Bedrooms    int
	Bathrooms   int
	AreaSqm     float64
	AddressLine string
	City        string
	PostalCode  string
	Country     string
	Attributes  map[string]any
	Photos      []string
}

// UpdatePropertyInput enumerates mutable listing attributes.
type UpdatePropertyInput struct {
	Title       *string
	Description *string
	Price       *int64
	Bedrooms    *int
	Bathrooms   *int
	AreaSqm     *float64
	Status      *models.PropertyStatus
	Attributes  map[string]any
	Photos      []string
}

// PropertyFilters narrows the public listing search.
type PropertyFilters struct {
	City        string
	MinPrice    int64
	MaxPrice    int64
	MinBedrooms int
}

// ListPropertiesOptions controls pagination and filtering.
type ListPropertiesOptions struct {
	Page    int
	PerPage int
	Filters PropertyFilters
}

// PropertyService manages real-estate listings owned by agents and agencies.
type PropertyService struct {
	db *gorm.DB
}

// NewPropertyService constructs a PropertyService.
func NewPropertyService(db *gorm.DB) (*PropertyService, error) {
	if db == nil {
		return nil, errors.New("property service: db is required")
	}
	return &PropertyService{db: db}, nil
}

// Create stores a new draft listing for the owner.
func (s *PropertyService) Create(ctx context.Context, owner *models.User, input CreatePropertyInput) (*models.Property, error) {
	ctx = ensureContext(ctx)

	if owner == nil || !owner.Role.CanList() {
		return nil, ErrListingNotAllowed
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("property service: title is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "EUR"
	}

	property := models.Property{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Currency:    currency,
		Bedrooms:    input.Bedrooms,
		Bathrooms:   input.Bathrooms,
		AreaSqm:     input.AreaSqm,
		AddressLine: strings.TrimSpace(input.AddressLine),
		City:        strings.TrimSpace(input.City),
		PostalCode:  strings.TrimSpace(input.PostalCode),
		Country:     strings.ToUpper(strings.TrimSpace(input.Country)),
		Status:      models.PropertyDraft,
		OwnerID:     owner.ID,
	}

	var err error
	if property.Attributes, err = marshalJSONColumn(input.Attributes); err != nil {
		return nil, fmt.Errorf("property service: encode attributes: %w", err)
	}
	if property.Photos, err = marshalJSONColumn(input.Photos); err != nil {
		return nil, fmt.Errorf("property service: encode photos: %w", err)
	}

	slug := Slugify(title)
	for attempt := 0; ; attempt++ {
		property.Slug = slug
		if attempt > 0 {
			property.Slug = fmt.Sprintf("%s-%d", slug, attempt+1)
		}
		err := s.db.WithContext(ctx).Create(&property).Error
		if err == nil {
			break
		}
		if isUniqueConstraintError(err) && attempt < 10 {
			property.ID = ""
			continue
		}
		return nil, fmt.Errorf("property service: create: %w", err)
	}

	return &property, nil
}

// Update applies changes to a listing the caller owns. Admins may edit any.
func (s *PropertyService) Update(ctx context.Context, propertyID, callerID string, callerRole models.Role, input UpdatePropertyInput) (*models.Property, error) {
	ctx = ensureContext(ctx)

	property, err := s.get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != callerID && callerRole != models.RoleAdmin {
		return nil, ErrPropertyForbidden
	}

	updates := map[string]any{}
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		updates["price"] = *input.Price
	}
	if input.Bedrooms != nil {
		updates["bedrooms"] = *input.Bedrooms
	}
	if input.Bathrooms != nil {
		updates["bathrooms"] = *input.Bathrooms
	}
	if input.AreaSqm != nil {
		updates["area_sqm"] = *input.AreaSqm
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Attributes != nil {
		encoded, err := marshalJSONColumn(input.Attributes)
		if err != nil {
			return nil, fmt.Errorf("property service: encode attributes: %w", err)
		}
		updates["attributes"] = encoded
	}
	if input.Photos != nil {
		encoded, err := marshalJSONColumn(input.Photos)
		if err != nil {
			return nil, fmt.Errorf("property service: encode photos: %w", err)
		}
		updates["photos"] = encoded
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(property).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("property service: update: %w", err)
		}
	}

	return s.get(ctx, propertyID)
}

// Delete removes a listing. Owners may delete their own; admins any.
func (s *PropertyService) Delete(ctx context.Context, propertyID, callerID string, callerRole models.Role) error {
	ctx = ensureContext(ctx)

	property, err := s.get(ctx, propertyID)
	if err != nil {
		return err
	}
	if property.OwnerID != callerID && callerRole != models.RoleAdmin {
		return ErrPropertyForbidden
	}

	if err := s.db.WithContext(ctx).Delete(property).Error; err != nil {
		return fmt.Errorf("property service: delete: %w", err)
	}
	return nil
}

// GetBySlug returns an active listing with its owner preloaded.
func (s *PropertyService) GetBySlug(ctx context.Context, slug string) (*models.Property, error) {
	ctx = ensureContext(ctx)

	var property models.Property
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Where("slug = ? AND status = ?", strings.TrimSpace(slug), models.PropertyActive).
		First(&property).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("property service: get by slug: %w", err)
	}
	return &property, nil
}

// ListActive returns ACTIVE listings matching the filters, newest first.
func (s *PropertyService) ListActive(ctx context.Context, opts ListPropertiesOptions) ([]models.Property, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := paginate(opts.Page, opts.PerPage)

	query := s.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("status = ?", models.PropertyActive)

	if city := strings.TrimSpace(opts.Filters.City); city != "" {
		query = query.Where("city = ?", city)
	}
	if opts.Filters.MinPrice > 0 {
		query = query.Where("price >= ?", opts.Filters.MinPrice)
	}
	if opts.Filters.MaxPrice > 0 {
		query = query.Where("price <= ?", opts.Filters.MaxPrice)
	}
	if opts.Filters.MinBedrooms > 0 {
		query = query.Where("bedrooms >= ?", opts.Filters.MinBedrooms)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("property service: count: %w", err)
	}

	var properties []models.Property
	err := query.
		Preload("Owner").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&properties).Error
	if err != nil {
		return nil, 0, fmt.Errorf("property service: list: %w", err)
	}

	return properties, total, nil
}

// ListByOwner returns every listing owned by the user, regardless of status.
func (s *PropertyService) ListByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	ctx = ensureContext(ctx)

	var properties []models.Property
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("property service: list by owner: %w", err)
	}
	return properties, nil
}

func (s *PropertyService) get(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	if err := s.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("property service: get: %w", err)
	}
	return &property, nil
}

func marshalJSONColumn(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}
