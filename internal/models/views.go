package models

// ListingDetail is the composed detail view of a listing.
// Creator is nil when the creating profile no longer resolves.
type ListingDetail struct {
	Listing
	Creator *Profile       `json:"creator"`
	Images  []ListingImage `json:"images"`
}

// ListingSummary is one entry of the listing grid. ImageURL is nil without a main image.
type ListingSummary struct {
	Listing
	Creator  *Profile `json:"creator"`
	ImageURL *string  `json:"image_url"`
}
