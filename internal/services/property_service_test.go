package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casavia/casavia/internal/database/testutil"
	"github.com/casavia/casavia/internal/models"
)

func TestPropertyCreateRequiresListingRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewPropertyService(db)
	require.NoError(t, err)

	reader := createUser(t, db, "reader@example.com", models.RoleUser)
	_, err = svc.Create(context.Background(), reader, CreatePropertyInput{Title: "Nope"})
	require.ErrorIs(t, err, ErrListingNotAllowed)

	support := createUser(t, db, "support@example.com", models.RoleSupport)
	_, err = svc.Create(context.Background(), support, CreatePropertyInput{Title: "Nope"})
	require.ErrorIs(t, err, ErrListingNotAllowed)
}

func TestPropertyCreateEncodesJSONColumns(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, _ := NewPropertyService(db)
	agent := createUser(t, db, "agent@example.com", models.RoleAgent)

	property, err := svc.Create(context.Background(), agent, CreatePropertyInput{
		Title:    "Canal House Amsterdam",
		Price:    785000,
		Currency: "eur",
		City:     "Amsterdam",
		Country:  "nl",
		Attributes: map[string]any{
			"year_built":   1910,
			"energy_label": "C",
		},
		Photos: []string{"https://cdn.example/p/1.jpg", "https://cdn.example/p/2.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, "canal-house-amsterdam", property.Slug)
	require.Equal(t, "EUR", property.Currency)
	require.Equal(t, "NL", property.Country)
	require.Equal(t, models.PropertyDraft, property.Status)

	var attrs map[string]any
	require.NoError(t, json.Unmarshal(property.Attributes, &attrs))
	require.Equal(t, "C", attrs["energy_label"])

	var photos []string
	require.NoError(t, json.Unmarshal(property.Photos, &photos))
	require.Len(t, photos, 2)
}

func TestPropertyStatusTransitionsAndPublicListing(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, _ := NewPropertyService(db)
	agent := createUser(t, db, "agent@example.com", models.RoleAgent)

	property, err := svc.Create(context.Background(), agent, CreatePropertyInput{
		Title: "Garden Flat",
		Price: 325000,
		City:  "Utrecht",
	})
	require.NoError(t, err)

	// Drafts are invisible publicly.
	_, err = svc.GetBySlug(context.Background(), property.Slug)
	require.ErrorIs(t, err, ErrPropertyNotFound)

	active := models.PropertyActive
	_, err = svc.Update(context.Background(), property.ID, agent.ID, agent.Role, UpdatePropertyInput{Status: &active})
	require.NoError(t, err)

	fetched, err := svc.GetBySlug(context.Background(), property.Slug)
	require.NoError(t, err)
	require.NotNil(t, fetched.Owner)
	require.Equal(t, agent.ID, fetched.Owner.ID)

	sold := models.PropertySold
	_, err = svc.Update(context.Background(), property.ID, agent.ID, agent.Role, UpdatePropertyInput{Status: &sold})
	require.NoError(t, err)

	_, err = svc.GetBySlug(context.Background(), property.Slug)
	require.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestPropertyListActiveFilters(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, _ := NewPropertyService(db)
	agent := createUser(t, db, "agent@example.com", models.RoleAgency)

	seed := []struct {
		title    string
		city     string
		price    int64
		bedrooms int
	}{
		{"A", "Amsterdam", 500000, 2},
		{"B", "Amsterdam", 800000, 4},
		{"C", "Rotterdam", 300000, 3},
	}
	active := models.PropertyActive
	for _, row := range seed {
		property, err := svc.Create(context.Background(), agent, CreatePropertyInput{
			Title:    row.title,
			City:     row.city,
			Price:    row.price,
			Bedrooms: row.bedrooms,
		})
		require.NoError(t, err)
		_, err = svc.Update(context.Background(), property.ID, agent.ID, agent.Role, UpdatePropertyInput{Status: &active})
		require.NoError(t, err)
	}

	results, total, err := svc.ListActive(context.Background(), ListPropertiesOptions{
		Filters: PropertyFilters{City: "Amsterdam"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, results, 2)

	results, total, err = svc.ListActive(context.Background(), ListPropertiesOptions{
		Filters: PropertyFilters{MinPrice: 400000, MaxPrice: 600000},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "A", results[0].Title)

	results, _, err = svc.ListActive(context.Background(), ListPropertiesOptions{
		Filters: PropertyFilters{MinBedrooms: 3},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestPropertyOwnershipGuards(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, _ := NewPropertyService(db)
	agent := createUser(t, db, "agent@example.com", models.RoleAgent)
	rival := createUser(t, db, "rival@example.com", models.RoleAgent)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)

	property, err := svc.Create(context.Background(), agent, CreatePropertyInput{Title: "Guarded", Price: 1})
	require.NoError(t, err)

	price := int64(2)
	_, err = svc.Update(context.Background(), property.ID, rival.ID, rival.Role, UpdatePropertyInput{Price: &price})
	require.ErrorIs(t, err, ErrPropertyForbidden)

	require.ErrorIs(t, svc.Delete(context.Background(), property.ID, rival.ID, rival.Role), ErrPropertyForbidden)
	require.NoError(t, svc.Delete(context.Background(), property.ID, admin.ID, admin.Role))
}
