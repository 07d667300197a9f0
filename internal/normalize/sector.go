package normalize

import (
	"strings"

	"github.com/sells-group/leadhunter/internal/model"
)

// placeTypeSectors maps places-search category tags to sectors.
var placeTypeSectors = buildIndex(map[model.Sector][]string{
	model.SectorRestaurant: {
		"restaurant", "cafe", "bar", "bakery", "meal_delivery", "meal_takeaway", "food",
	},
	model.SectorRetail: {
		"store", "clothing_store", "shoe_store", "jewelry_store", "book_store",
		"convenience_store", "department_store", "electronics_store", "furniture_store",
		"hardware_store", "home_goods_store", "pet_store", "shopping_mall",
		"supermarket", "grocery_or_supermarket", "florist",
	},
	model.SectorHealth: {
		"doctor", "dentist", "hospital", "pharmacy", "physiotherapist", "health",
		"veterinary_care", "optician",
	},
	model.SectorBeauty: {
		"beauty_salon", "hair_care", "spa", "nail_salon",
	},
	model.SectorConstruction: {
		"electrician", "plumber", "roofing_contractor", "general_contractor", "painter",
		"moving_company",
	},
	model.SectorAutomotive: {
		"car_dealer", "car_repair", "car_wash", "gas_station",
	},
	model.SectorRealEstate: {
		"real_estate_agency",
	},
	model.SectorProfessionalServices: {
		"lawyer", "accounting", "insurance_agency", "travel_agency", "bank", "finance",
		"establishment",
	},
	model.SectorEducation: {
		"school", "university", "gym", "library",
	},
})

// activitySectors maps registry activity codes (NAF rev. 2, without the
// dot) to sectors. Keys are full codes, 4-char classes or 2-char divisions.
var activitySectors = buildIndex(map[model.Sector][]string{
	model.SectorRestaurant: {
		"5610A", "5610B", "5610C", "5621Z", "5630Z",
	},
	model.SectorRetail: {
		"4711", "4719", "4721Z", "4722Z", "4723Z", "4724Z", "4725Z", "4726Z",
		"4729Z", "4771Z", "4772", "4773Z", "4774Z", "4775Z", "4776Z",
	},
	model.SectorHealth: {
		"8621Z", "8622A", "8622B", "8622C", "8623Z", "8690A", "8690B", "8690D",
		"8690E", "8690F",
	},
	model.SectorBeauty: {
		"9602A", "9602B", "9604Z",
	},
	model.SectorConstruction: {
		"4110", "4120", "4211Z", "4221Z", "4222Z", "4291Z", "4299Z", "4311Z",
		"4312", "4313Z", "4321A", "4322", "4329", "4331Z", "4332", "4333Z",
		"4334Z", "4339Z", "4391", "4399",
	},
	model.SectorAutomotive: {
		"4511Z", "4519Z", "4520A", "4520B", "4531Z", "4532Z", "4540Z",
	},
	model.SectorRealEstate: {
		"6810Z", "6820A", "6820B", "6831Z", "6832A",
	},
	model.SectorProfessionalServices: {
		"6910Z", "6920Z", "7010Z", "7021Z", "7022Z", "7111Z", "7112A", "7112B",
		"7120A", "7120B", "7311Z", "7312Z", "7320Z", "7410Z", "7420Z", "7430Z",
		"7490A", "7490B",
	},
	model.SectorEducation: {
		"8510Z", "8520Z", "8531Z", "8532Z", "8541Z", "8542Z", "8551Z", "8552Z",
		"8553Z", "8559A", "8559B",
	},
})

func buildIndex(bySector map[model.Sector][]string) map[string]model.Sector {
	idx := make(map[string]model.Sector)
	for sector, keys := range bySector {
		for _, k := range keys {
			idx[k] = sector
		}
	}
	return idx
}

// SectorFromPlaceTypes classifies a business from its places-search
// category tags. The first tag with a known sector wins.
func SectorFromPlaceTypes(types []string) model.Sector {
	for _, t := range types {
		if s, ok := placeTypeSectors[strings.ToLower(strings.TrimSpace(t))]; ok {
			return s
		}
	}
	return model.SectorOther
}

// SectorFromActivityCode classifies a business from its registry activity
// code, trying the full code, then its 4-char class, then its 2-char
// division.
func SectorFromActivityCode(code string) model.Sector {
	c := NormalizeActivityCode(code)
	if c == "" {
		return model.SectorOther
	}
	if s, ok := activitySectors[c]; ok {
		return s
	}
	if len(c) >= 4 {
		if s, ok := activitySectors[c[:4]]; ok {
			return s
		}
	}
	if len(c) >= 2 {
		if s, ok := activitySectors[c[:2]]; ok {
			return s
		}
	}
	return model.SectorOther
}

// NormalizeActivityCode strips separators from an activity code and
// upper-cases it: "56.10A" becomes "5610A".
func NormalizeActivityCode(code string) string {
	r := strings.NewReplacer(".", "", " ", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(code)))
}
