package models

import "time"

// Profile is the public identity record of an account, extended with brokerage fields.
// Its ID equals the owning Account ID.
type Profile struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Email          string    `bson:"email" json:"email"`
	Name           string    `bson:"name,omitempty" json:"name,omitempty"`
	Phone          string    `bson:"phone,omitempty" json:"phone,omitempty"`
	ProfileImage   string    `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	CompanyName    string    `bson:"company_name,omitempty" json:"company_name,omitempty"`
	Position       string    `bson:"position,omitempty" json:"position,omitempty"`
	CompanyPhone   string    `bson:"company_phone,omitempty" json:"company_phone,omitempty"`
	CompanyEmail   string    `bson:"company_email,omitempty" json:"company_email,omitempty"`
	Address        string    `bson:"address,omitempty" json:"address,omitempty"`
	BusinessNumber string    `bson:"business_number,omitempty" json:"business_number,omitempty"`
	Representative string    `bson:"representative,omitempty" json:"representative,omitempty"`
	Website        string    `bson:"website,omitempty" json:"website,omitempty"`
	IsAdmin        bool      `bson:"is_admin" json:"is_admin"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}
