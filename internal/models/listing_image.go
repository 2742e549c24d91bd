package models

import "time"

// ListingImage is one ordered image of a listing. The image at order 0 is the main image.
type ListingImage struct {
	ID         string    `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID  string    `bson:"listing_id" json:"listing_id"`
	ImageURL   string    `bson:"image_url" json:"image_url"`
	ImageOrder int       `bson:"image_order" json:"image_order"`
	IsMain     bool      `bson:"is_main" json:"is_main"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// NewListingImages builds the rows for an ordered url list.
func NewListingImages(listingID string, urls []string, now time.Time) []ListingImage {
	images := make([]ListingImage, 0, len(urls))
	for i, u := range urls {
		images = append(images, ListingImage{
			ID:         NewID(),
			ListingID:  listingID,
			ImageURL:   u,
			ImageOrder: i,
			IsMain:     i == 0,
			CreatedAt:  now,
		})
	}
	return images
}
