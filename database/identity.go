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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nordlion/nordlion/internal/apierror"
	"github.com/nordlion/nordlion/model"
)

const identityColumns = `identity_id, category, first_name, last_name, email_address, phone_number, nationality, street, city, post_code, country, created_at, meta_data`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (model.Identity, error) {
	identity := model.Identity{}
	var metaDataJSON []byte
	err := row.Scan(
		&identity.IdentityID, &identity.Category,
		&identity.FirstName, &identity.LastName, &identity.EmailAddress, &identity.PhoneNumber, &identity.Nationality,
		&identity.Street, &identity.City, &identity.PostCode, &identity.Country, &identity.CreatedAt, &metaDataJSON,
	)
	if err != nil {
		return identity, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &identity.MetaData); err != nil {
			return identity, err
		}
	}
	return identity, nil
}

// CreateIdentity inserts a new identity into the database
func (d Datasource) CreateIdentity(identity model.Identity) (model.Identity, error) {
	metaDataJSON, err := json.Marshal(identity.MetaData)
	if err != nil {
		return identity, apierror.NewAPIError(apierror.ErrInvalidInput, "failed to marshal metadata", err)
	}

	identity.IdentityID = model.GenerateID("idt")
	identity.CreatedAt = time.Now().UTC()

	_, err = d.Conn.Exec(`
		INSERT INTO nordlion.identity (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, identity.IdentityID, identity.Category, identity.FirstName, identity.LastName, identity.EmailAddress, identity.PhoneNumber, identity.Nationality, identity.Street, identity.City, identity.PostCode, identity.Country, identity.CreatedAt, metaDataJSON)
	if err != nil {
		return identity, mapError(err, "identity", identity.IdentityID)
	}

	return identity, nil
}

// GetIdentityByID retrieves an identity from the database by ID
func (d Datasource) GetIdentityByID(id string) (*model.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, `
	SELECT `+identityColumns+`
	FROM nordlion.identity
	WHERE identity_id = $1
`, id)

	identity, err := scanIdentity(row)
	if err != nil {
		return nil, mapError(err, "identity", id)
	}
	return &identity, nil
}

// GetAllIdentities retrieves all identities from the database
func (d Datasource) GetAllIdentities() ([]model.Identity, error) {
	rows, err := d.Conn.Query(`
	SELECT ` + identityColumns + `
	FROM nordlion.identity
	ORDER BY created_at DESC
`)
	if err != nil {
		return nil, mapError(err, "identity", "")
	}
	defer rows.Close()

	var identities []model.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, mapError(err, "identity", "")
		}
		identities = append(identities, identity)
	}

	return identities, rows.Err()
}

// UpdateIdentity updates an identity in the database
func (d Datasource) UpdateIdentity(identity *model.Identity) error {
	metaDataJSON, err := json.Marshal(identity.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "failed to marshal metadata", err)
	}

	result, err := d.Conn.Exec(`
		UPDATE nordlion.identity
		SET category = $2, first_name = $3, last_name = $4, email_address = $5, phone_number = $6, nationality = $7, street = $8, city = $9, post_code = $10, country = $11, meta_data = $12
		WHERE identity_id = $1
	`, identity.IdentityID, identity.Category, identity.FirstName, identity.LastName, identity.EmailAddress, identity.PhoneNumber, identity.Nationality, identity.Street, identity.City, identity.PostCode, identity.Country, metaDataJSON)
	if err != nil {
		return mapError(err, "identity", identity.IdentityID)
	}
	return requireAffected(result, "identity", identity.IdentityID)
}

// DeleteIdentity deletes an identity from the database by ID. The owned KYC
// record goes with it through ON DELETE CASCADE.
func (d Datasource) DeleteIdentity(id string) error {
	result, err := d.Conn.Exec(`
		DELETE FROM nordlion.identity
		WHERE identity_id = $1
	`, id)
	if err != nil {
		return mapError(err, "identity", id)
	}
	return requireAffected(result, "identity", id)
}

func requireAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err, entity, id)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows, entity, id)
	}
	return nil
}
