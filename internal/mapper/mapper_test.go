package mapper

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func newTestMapper() *Mapper {
	n := 0
	return New(
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestMap_PlacesWithoutWebsite(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(PlacesRecord{
		ExternalID:   "ChIJ123",
		Name:         "  Le Petit Bistrot ",
		Address:      "12 Rue Mercière, 69002 Lyon, France",
		Phone:        "04 78 00 00 00",
		Types:        []string{"restaurant", "food"},
		Rating:       floatPtr(4.4),
		ReviewsCount: intPtr(231),
		ProfileURL:   "https://maps.google.com/?cid=1",
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", b.ID)
	assert.Equal(t, "Le Petit Bistrot", b.Name)
	require.NotNil(t, b.Address)
	assert.Equal(t, "12 Rue Mercière", *b.Address)
	assert.Equal(t, "69002", b.PostalCode)
	assert.Equal(t, "Lyon", b.City)
	assert.Equal(t, model.SectorRestaurant, b.Sector)
	assert.Equal(t, model.SourcePlacesSearch, b.Source)
	assert.Equal(t, "ChIJ123", b.ExternalID)
	assert.False(t, b.HasWebsite())
	assert.Equal(t, 95, b.ProspectScore())
	assert.Equal(t, scorer.PriorityHot, b.Priority())
	assert.Equal(t, model.StatusNew, b.Status)
	assert.Empty(t, b.Notes)
	assert.NotNil(t, b.Notes)
	assert.Nil(t, b.Audit)
	assert.Nil(t, b.LastContactedAt)
	assert.Equal(t, fixedNow, b.CreatedAt)
	assert.Equal(t, fixedNow, b.UpdatedAt)
}

func TestMap_PlacesWithWebsite(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(&PlacesRecord{
		ExternalID: "ChIJ456",
		Name:       "Coiffure Élodie",
		City:       "Nantes",
		PostalCode: "44000",
		Website:    strPtr("WWW.Coiffure-Elodie.fr/"),
		Types:      []string{"hair_care"},
	})
	require.NoError(t, err)

	require.True(t, b.HasWebsite())
	assert.Equal(t, "https://www.coiffure-elodie.fr", *b.Website)
	assert.Equal(t, "Nantes", b.City)
	assert.Equal(t, model.SectorBeauty, b.Sector)
	assert.Equal(t, 50, b.ProspectScore())
	assert.Equal(t, scorer.PriorityWarm, b.Priority())
}

func TestMap_PlacesBlankWebsiteIsAbsent(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(PlacesRecord{ExternalID: "x", Name: "Atelier", Website: strPtr("  ")})
	require.NoError(t, err)
	assert.False(t, b.HasWebsite())
	assert.Equal(t, 95, b.ProspectScore())
}

func TestMap_PlacesMissingFields(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		name  string
		rec   PlacesRecord
		field string
	}{
		{"no name", PlacesRecord{ExternalID: "x", Name: " "}, "name"},
		{"no external id", PlacesRecord{Name: "Bar"}, "external_id"},
		{"bad rating", PlacesRecord{ExternalID: "x", Name: "Bar", Rating: floatPtr(7)}, "rating"},
		{"negative reviews", PlacesRecord{ExternalID: "x", Name: "Bar", ReviewsCount: intPtr(-2)}, "reviews_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := m.Map(tt.rec)
			assert.Nil(t, b)
			var me *model.MappingError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
			assert.Equal(t, model.SourcePlacesSearch, me.Source)
		})
	}
}

func TestMap_Registry(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(RegistryRecord{
		RegistrationID: "732 829 320 00074",
		LegalName:      "SARL DUPONT ET FILS",
		TradeName:      strPtr("Plomberie Dupont"),
		ActivityCode:   "43.22A",
		StreetNumber:   "8",
		StreetType:     "AV",
		StreetName:     "JEAN JAURES",
		PostalCode:     "31000",
		City:           "TOULOUSE",
		Active:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Plomberie Dupont", b.Name)
	require.NotNil(t, b.Address)
	assert.Equal(t, "8 AV JEAN JAURES", *b.Address)
	assert.Equal(t, "73282932000074", *b.RegistrationID)
	assert.Equal(t, "73282932000074", b.ExternalID)
	assert.Equal(t, model.SectorConstruction, b.Sector)
	assert.Equal(t, model.SourceBusinessRegistry, b.Source)
	assert.Nil(t, b.Website)
	assert.Equal(t, 95, b.ProspectScore())
	assert.Equal(t, scorer.PriorityHot, b.Priority())
}

func TestMap_RegistryNameFallback(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(RegistryRecord{
		RegistrationID: "12345678900011",
		LegalName:      "SAS HOLDING",
		TradeName:      strPtr(""),
		UsualName:      strPtr("Institut Beauté"),
		Active:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Institut Beauté", b.Name)
	assert.Nil(t, b.Address)
	assert.Equal(t, model.SectorOther, b.Sector)

	b, err = m.Map(RegistryRecord{RegistrationID: "12345678900011", LegalName: "SAS HOLDING", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "SAS HOLDING", b.Name)
}

func TestMap_RegistryRejected(t *testing.T) {
	m := newTestMapper()

	_, err := m.Map(RegistryRecord{RegistrationID: "12345678900011", LegalName: "X", Active: false})
	assert.True(t, model.IsMapping(err))

	_, err = m.Map(RegistryRecord{LegalName: "X", Active: true})
	assert.True(t, model.IsMapping(err))

	_, err = m.Map(RegistryRecord{RegistrationID: "12345678900011", Active: true})
	var me *model.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "name", me.Field)
}

func TestMap_ManualKeepsAddressWithCity(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(ManualRecord{Name: "Cabinet Martin", Address: "3 Rue Nationale, 59000 Lille", City: "Lille"})
	require.NoError(t, err)
	require.NotNil(t, b.Address)
	assert.Equal(t, "3 Rue Nationale, 59000 Lille", *b.Address)
	assert.Empty(t, b.PostalCode)
}

func TestMap_Manual(t *testing.T) {
	m := newTestMapper()

	b, err := m.Map(ManualRecord{
		Name:    "Cabinet Martin",
		Address: "3 Rue Nationale, 59000 Lille",
		Email:   "contact@martin.fr",
		Website: "martin-avocats.fr",
		Sector:  "professional_services",
		Source:  model.SourceImport,
		Status:  "contacted",
		Notes:   []string{"Rappeler lundi", " "},
	})
	require.NoError(t, err)

	assert.Equal(t, model.SourceImport, b.Source)
	require.NotNil(t, b.Address)
	assert.Equal(t, "3 Rue Nationale", *b.Address)
	assert.Equal(t, "Lille", b.City)
	assert.Equal(t, "59000", b.PostalCode)
	assert.Equal(t, "https://martin-avocats.fr", *b.Website)
	assert.Equal(t, model.SectorProfessionalServices, b.Sector)
	assert.Equal(t, model.StatusContacted, b.Status)
	require.NotNil(t, b.LastContactedAt)
	require.Len(t, b.Notes, 1)
	assert.Equal(t, b.ID, b.Notes[0].BusinessID)
	assert.Equal(t, 50, b.ProspectScore())
}

func TestMap_ManualInvalid(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		name  string
		rec   ManualRecord
		field string
	}{
		{"no name", ManualRecord{}, "name"},
		{"bad email", ManualRecord{Name: "A", Email: "nope"}, "email"},
		{"bad siret", ManualRecord{Name: "A", SIRET: "123"}, "siret"},
		{"bad sector", ManualRecord{Name: "A", Sector: "bakery"}, "sector"},
		{"bad status", ManualRecord{Name: "A", Status: "archived"}, "status"},
		{"bad source", ManualRecord{Name: "A", Source: model.SourcePlacesSearch}, "source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Map(tt.rec)
			var me *model.MappingError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestMap_HasWebsiteInvariant(t *testing.T) {
	m := newTestMapper()

	records := []Record{
		PlacesRecord{ExternalID: "a", Name: "A", Website: strPtr("a.fr")},
		PlacesRecord{ExternalID: "b", Name: "B"},
		RegistryRecord{RegistrationID: "12345678900011", LegalName: "C", Active: true},
		ManualRecord{Name: "D", Website: "d.fr"},
		ManualRecord{Name: "E"},
	}
	businesses, errs := m.MapAll(records)
	require.Empty(t, errs)
	require.Len(t, businesses, len(records))
	for _, b := range businesses {
		assert.Equal(t, b.Website != nil, b.HasWebsite(), b.Name)
		if b.HasWebsite() {
			assert.Equal(t, 50, b.ProspectScore(), b.Name)
		} else {
			assert.Equal(t, 95, b.ProspectScore(), b.Name)
		}
	}
}

func TestMapAll_CollectsFailures(t *testing.T) {
	m := newTestMapper()

	businesses, errs := m.MapAll([]Record{
		PlacesRecord{ExternalID: "a", Name: "A"},
		PlacesRecord{ExternalID: "b"},
		ManualRecord{Name: "C"},
	})
	require.Len(t, businesses, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, "A", businesses[0].Name)
	assert.Equal(t, "C", businesses[1].Name)
	assert.True(t, model.IsMapping(errs[0]))
}
