package model

import (
	"github.com/sells-group/leadhunter/internal/scorer"
)

// Display labels used by exports and the dashboard. Keys and values are a
// stable contract for downstream reporting.
var (
	StatusLabels = map[Status]string{
		StatusNew:       "Nouveau",
		StatusContacted: "Contacté",
		StatusMeeting:   "RDV",
		StatusProposal:  "Devis envoyé",
		StatusWon:       "Gagné",
		StatusLost:      "Perdu",
	}

	PriorityLabels = map[scorer.Priority]string{
		scorer.PriorityHot:  "Chaud",
		scorer.PriorityWarm: "Tiède",
		scorer.PriorityCold: "Froid",
	}

	SectorLabels = map[Sector]string{
		SectorRestaurant:           "Restaurant",
		SectorRetail:               "Commerce",
		SectorHealth:               "Santé",
		SectorBeauty:               "Beauté",
		SectorConstruction:         "BTP",
		SectorProfessionalServices: "Services",
		SectorRealEstate:           "Immobilier",
		SectorAutomotive:           "Automobile",
		SectorEducation:            "Éducation",
		SectorOther:                "Autre",
	}

	SourceLabels = map[Source]string{
		SourcePlacesSearch:     "Google Maps",
		SourceBusinessRegistry: "INSEE",
		SourceManual:           "Manuel",
		SourceImport:           "Import",
	}
)

// Label returns the display label of the status.
func (s Status) Label() string { return labelOr(StatusLabels, s) }

// Label returns the display label of the sector, or "" when unclassified.
func (s Sector) Label() string {
	if s == "" {
		return ""
	}
	return labelOr(SectorLabels, s)
}

// Label returns the display label of the source.
func (s Source) Label() string { return labelOr(SourceLabels, s) }

// PriorityLabel returns the display label of a priority tier.
func PriorityLabel(p scorer.Priority) string { return labelOr(PriorityLabels, p) }

func labelOr[K ~string](labels map[K]string, k K) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}
