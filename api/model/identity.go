package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nordlion/nordlion/model"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type CreateIdentity struct {
	Category     string                 `json:"category"`
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	EmailAddress string                 `json:"email_address"`
	PhoneNumber  string                 `json:"phone_number"`
	Nationality  string                 `json:"nationality"`
	Street       string                 `json:"street"`
	City         string                 `json:"city"`
	PostCode     string                 `json:"post_code"`
	Country      string                 `json:"country"`
	MetaData     map[string]interface{} `json:"meta_data"`
}

func (i *CreateIdentity) ValidateCreateIdentity() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.FirstName, validation.Required),
		validation.Field(&i.LastName, validation.Required),
		validation.Field(&i.EmailAddress, validation.Required, validation.Match(emailPattern).Error("must be a valid email address")),
	)
}

func (i *CreateIdentity) ToIdentity() model.Identity {
	return model.Identity{
		Category:     i.Category,
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		EmailAddress: i.EmailAddress,
		PhoneNumber:  i.PhoneNumber,
		Nationality:  i.Nationality,
		Street:       i.Street,
		City:         i.City,
		PostCode:     i.PostCode,
		Country:      i.Country,
		MetaData:     i.MetaData,
	}
}
