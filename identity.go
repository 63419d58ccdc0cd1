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

package nordlion

import (
	"context"

	"github.com/nordlion/nordlion/internal/apierror"
	"github.com/nordlion/nordlion/model"
)

func (n *NordLion) CreateIdentity(identity model.Identity) (model.Identity, error) {
	identity, err := n.datasource.CreateIdentity(identity)
	if err != nil {
		return model.Identity{}, err
	}
	n.sendWebhook(EventIdentityCreated, IdentityEvent{IdentityID: identity.IdentityID, CreatedAt: identity.CreatedAt})
	return identity, nil
}

func (n *NordLion) GetIdentity(id string) (*model.Identity, error) {
	return n.datasource.GetIdentityByID(id)
}

func (n *NordLion) GetAllIdentities() ([]model.Identity, error) {
	return n.datasource.GetAllIdentities()
}

func (n *NordLion) UpdateIdentity(identity *model.Identity) error {
	return n.datasource.UpdateIdentity(identity)
}

// DeleteIdentity removes the identity and, through the foreign key cascade, its
// KYC record. The record lock is held across the delete so no in-flight write
// can cache the record again afterwards.
func (n *NordLion) DeleteIdentity(id string) error {
	ctx := context.Background()

	record, err := n.datasource.GetKYCByIdentityID(ctx, id)
	switch code, _ := apierror.CodeOf(err); {
	case err == nil:
		unlock, err := n.lockRecord(ctx, record.KYCID)
		if err != nil {
			return err
		}
		defer unlock()
	case code != apierror.ErrNotFound:
		return err
	}

	if err := n.datasource.DeleteIdentity(id); err != nil {
		return err
	}
	n.forgetIdentity(ctx, id)
	return nil
}
