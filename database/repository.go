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

package database

import (
	"context"
	"time"

	"github.com/nordlion/nordlion/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	identity // Interface for identity-related operations
	kyc      // Interface for KYC record operations
}

// identity defines methods for handling identities.
type identity interface {
	CreateIdentity(identity model.Identity) (model.Identity, error) // Creates a new identity
	GetIdentityByID(id string) (*model.Identity, error)             // Retrieves an identity by ID
	GetAllIdentities() ([]model.Identity, error)                    // Retrieves all identities
	UpdateIdentity(identity *model.Identity) error                  // Updates an identity
	DeleteIdentity(id string) error                                 // Deletes an identity and, by cascade, its KYC record
}

// kyc defines methods for handling KYC records.
type kyc interface {
	CreateKYC(ctx context.Context, record *model.KYCRecord) error                                        // Inserts a new submission
	ResubmitKYC(ctx context.Context, record *model.KYCRecord) error                                      // Replaces the submitted data and resets review state
	GetKYCByID(ctx context.Context, id string) (*model.KYCRecord, error)                                 // Retrieves a record by KYC ID
	GetKYCByIdentityID(ctx context.Context, identityID string) (*model.KYCRecord, error)                 // Retrieves the record owned by an identity
	GetAllKYC(ctx context.Context, limit, offset int, status model.KYCStatus) ([]model.KYCRecord, error) // Lists records, optionally by status
	UpdateKYCReview(ctx context.Context, record *model.KYCRecord, from model.KYCStatus) error            // Persists a transition out of from
	UpdateKYCCompliance(ctx context.Context, record *model.KYCRecord) error                              // Persists screening flags and risk level
	GetApprovedExpiredKYC(ctx context.Context, now time.Time, limit int) ([]model.KYCRecord, error)      // Lists approved records whose ExpiresAt has passed
	MarkKYCExpired(ctx context.Context, id string, now time.Time) (bool, error)                          // Moves one approved, past-expiry record to expired
}
