package models

import (
	"time"
)

// FacilityCategory is one of the fixed groups of nearby facilities shown on a listing.
type FacilityCategory string

const (
	FacilityEducation      FacilityCategory = "education"
	FacilityShopping       FacilityCategory = "shopping"
	FacilityMedical        FacilityCategory = "medical"
	FacilityTransportation FacilityCategory = "transportation"
)

// FacilityCategories lists the accepted categories in display order.
var FacilityCategories = []FacilityCategory{
	FacilityEducation,
	FacilityShopping,
	FacilityMedical,
	FacilityTransportation,
}

// Valid reports whether c is a known category.
func (c FacilityCategory) Valid() bool {
	for _, known := range FacilityCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Facilities maps a category to its ordered items. Empty categories are never stored.
type Facilities map[FacilityCategory][]string

// FinancialInfo is persisted as a whole, even when every field is empty.
type FinancialInfo struct {
	AcquisitionTax     string `bson:"acquisition_tax" json:"acquisition_tax"`
	AcquisitionTaxNote string `bson:"acquisition_tax_note" json:"acquisition_tax_note"`
	BrokerageFeeSale   string `bson:"brokerage_fee_sale" json:"brokerage_fee_sale"`
	BrokerageFeeRent   string `bson:"brokerage_fee_rent" json:"brokerage_fee_rent"`
	BrokerageFeeNote   string `bson:"brokerage_fee_note" json:"brokerage_fee_note"`
	Disclaimer         string `bson:"disclaimer" json:"disclaimer"`
}

// Listing represents a property offered for sale or rent.
// Price and the size/count fields are free text as entered by the broker.
type Listing struct {
	ID                string         `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyNumber    string         `bson:"property_number" json:"property_number"`
	Title             string         `bson:"title" json:"title"`
	Subtitle          string         `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Price             string         `bson:"price" json:"price"`
	Address           string         `bson:"address" json:"address"`
	Area              string         `bson:"area,omitempty" json:"area,omitempty"`
	Rooms             string         `bson:"rooms,omitempty" json:"rooms,omitempty"`
	Floor             string         `bson:"floor,omitempty" json:"floor,omitempty"`
	Direction         string         `bson:"direction,omitempty" json:"direction,omitempty"`
	SupplyArea        string         `bson:"supply_area,omitempty" json:"supply_area,omitempty"`
	FloorInfo         string         `bson:"floor_info,omitempty" json:"floor_info,omitempty"`
	RoomsBaths        string         `bson:"rooms_baths,omitempty" json:"rooms_baths,omitempty"`
	MoveInDate        string         `bson:"move_in_date,omitempty" json:"move_in_date,omitempty"`
	EntranceStructure string         `bson:"entrance_structure,omitempty" json:"entrance_structure,omitempty"`
	MaintenanceFee    string         `bson:"maintenance_fee,omitempty" json:"maintenance_fee,omitempty"`
	HeatingMethod     string         `bson:"heating_method,omitempty" json:"heating_method,omitempty"`
	ApprovalDate      string         `bson:"approval_date,omitempty" json:"approval_date,omitempty"`
	TotalHouseholds   string         `bson:"total_households,omitempty" json:"total_households,omitempty"`
	TotalParking      string         `bson:"total_parking,omitempty" json:"total_parking,omitempty"`
	Constructor       string         `bson:"constructor,omitempty" json:"constructor,omitempty"`
	MapURL            string         `bson:"map_url,omitempty" json:"map_url,omitempty"`
	HasBasicOptions   bool           `bson:"has_basic_options" json:"has_basic_options"`
	Descriptions      []string       `bson:"descriptions,omitempty" json:"descriptions,omitempty"`
	Facilities        Facilities     `bson:"facilities,omitempty" json:"facilities,omitempty"`
	FinancialInfo     *FinancialInfo `bson:"financial_info,omitempty" json:"financial_info,omitempty"`
	CreatedBy         string         `bson:"created_by" json:"created_by"`
	CreatedAt         time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at" json:"updated_at"`
}
