/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"time"
)

// Identity is a NordLion client account. It owns at most one KYC record.
type Identity struct {
	IdentityID   string                 `json:"identity_id" form:"identity_id"`
	Category     string                 `json:"category" form:"category"`
	FirstName    string                 `json:"first_name" form:"first_name"`
	LastName     string                 `json:"last_name" form:"last_name"`
	EmailAddress string                 `json:"email_address" form:"email_address"`
	PhoneNumber  string                 `json:"phone_number" form:"phone_number"`
	Nationality  string                 `json:"nationality" form:"nationality"`
	Street       string                 `json:"street" form:"street"`
	City         string                 `json:"city" form:"city"`
	PostCode     string                 `json:"post_code" form:"postCode"`
	Country      string                 `json:"country" form:"country"`
	CreatedAt    time.Time              `json:"created_at" form:"createdAt"`
	MetaData     map[string]interface{} `json:"meta_data" form:"metaData"`
}
