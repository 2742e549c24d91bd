package services

import (
	"strings"

	"github.com/ksw5434/realestate/internal/models"
)

// ListingForm is the admin form for creating or replacing a listing.
// Facility categories arrive as raw strings and are checked against models.FacilityCategories.
type ListingForm struct {
	PropertyNumber    string               `json:"property_number"`
	Title             string               `json:"title"`
	Subtitle          string               `json:"subtitle"`
	Price             string               `json:"price"`
	Address           string               `json:"address"`
	Area              string               `json:"area"`
	Rooms             string               `json:"rooms"`
	Floor             string               `json:"floor"`
	Direction         string               `json:"direction"`
	SupplyArea        string               `json:"supply_area"`
	FloorInfo         string               `json:"floor_info"`
	RoomsBaths        string               `json:"rooms_baths"`
	MoveInDate        string               `json:"move_in_date"`
	EntranceStructure string               `json:"entrance_structure"`
	MaintenanceFee    string               `json:"maintenance_fee"`
	HeatingMethod     string               `json:"heating_method"`
	ApprovalDate      string               `json:"approval_date"`
	TotalHouseholds   string               `json:"total_households"`
	TotalParking      string               `json:"total_parking"`
	Constructor       string               `json:"constructor"`
	MapURL            string               `json:"map_url"`
	HasBasicOptions   bool                 `json:"has_basic_options"`
	Descriptions      []string             `json:"descriptions"`
	Facilities        map[string][]string  `json:"facilities"`
	FinancialInfo     models.FinancialInfo `json:"financial_info"`
	ImageURLs         []string             `json:"image_urls"`
}

// toListing validates the form and maps it onto a listing without identity or timestamps.
// It also returns the cleaned image url list.
func (f ListingForm) toListing() (*models.Listing, []string, error) {
	verr := &ValidationError{}
	required := []struct{ field, value string }{
		{"property_number", f.PropertyNumber},
		{"title", f.Title},
		{"price", f.Price},
		{"address", f.Address},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.add(r.field, "is required")
		}
	}
	facilities := normalizeFacilities(f.Facilities, verr)
	if err := verr.orNil(); err != nil {
		return nil, nil, err
	}

	financialInfo := f.FinancialInfo
	listing := &models.Listing{
		PropertyNumber:    f.PropertyNumber,
		Title:             f.Title,
		Subtitle:          f.Subtitle,
		Price:             f.Price,
		Address:           f.Address,
		Area:              f.Area,
		Rooms:             f.Rooms,
		Floor:             f.Floor,
		Direction:         f.Direction,
		SupplyArea:        f.SupplyArea,
		FloorInfo:         f.FloorInfo,
		RoomsBaths:        f.RoomsBaths,
		MoveInDate:        f.MoveInDate,
		EntranceStructure: f.EntranceStructure,
		MaintenanceFee:    f.MaintenanceFee,
		HeatingMethod:     f.HeatingMethod,
		ApprovalDate:      f.ApprovalDate,
		TotalHouseholds:   f.TotalHouseholds,
		TotalParking:      f.TotalParking,
		Constructor:       f.Constructor,
		MapURL:            f.MapURL,
		HasBasicOptions:   f.HasBasicOptions,
		Descriptions:      normalizeDescriptions(f.Descriptions),
		Facilities:        facilities,
		FinancialInfo:     &financialInfo,
	}
	return listing, normalizeImageURLs(f.ImageURLs), nil
}

// normalizeDescriptions drops whitespace-only paragraphs. nil when nothing is left.
func normalizeDescriptions(in []string) []string {
	var out []string
	for _, d := range in {
		if strings.TrimSpace(d) != "" {
			out = append(out, d)
		}
	}
	return out
}

// normalizeFacilities rejects unknown categories, drops blank items and empty
// categories. nil when nothing is left.
func normalizeFacilities(in map[string][]string, verr *ValidationError) models.Facilities {
	var out models.Facilities
	for name, items := range in {
		category := models.FacilityCategory(strings.ToLower(strings.TrimSpace(name)))
		if !category.Valid() {
			verr.add("facilities."+name, "is not a known category")
			continue
		}
		var kept []string
		for _, item := range items {
			if strings.TrimSpace(item) != "" {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			continue
		}
		if out == nil {
			out = models.Facilities{}
		}
		out[category] = append(out[category], kept...)
	}
	return out
}

// normalizeImageURLs trims urls and drops blanks, keeping order.
func normalizeImageURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
