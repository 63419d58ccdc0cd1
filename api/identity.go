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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/nordlion/nordlion/api/model"
	"github.com/nordlion/nordlion/model"
)

// CreateIdentity creates a new identity record in the system.
//
// Responses:
// - 400 Bad Request: If the body cannot be bound or fails validation.
// - 201 Created: If the identity is successfully created.
func (a Api) CreateIdentity(c *gin.Context) {
	var newIdentity model2.CreateIdentity
	if err := c.ShouldBindJSON(&newIdentity); err != nil {
		badRequest(c, err)
		return
	}
	if err := newIdentity.ValidateCreateIdentity(); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := a.nordlion.CreateIdentity(newIdentity.ToIdentity())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetIdentity retrieves an identity record by its ID.
func (a Api) GetIdentity(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.nordlion.GetIdentity(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateIdentity replaces the contact data of an existing identity.
func (a Api) UpdateIdentity(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var update model2.CreateIdentity
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}
	if err := update.ValidateCreateIdentity(); err != nil {
		badRequest(c, err)
		return
	}

	identity := update.ToIdentity()
	identity.IdentityID = id
	if err := a.nordlion.UpdateIdentity(&identity); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Identity updated successfully"})
}

// DeleteIdentity deletes an identity and, with it, its KYC record.
func (a Api) DeleteIdentity(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.nordlion.DeleteIdentity(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Identity deleted successfully"})
}

func (a Api) GetAllIdentities(c *gin.Context) {
	identities, err := a.nordlion.GetAllIdentities()
	if err != nil {
		respondError(c, err)
		return
	}
	if identities == nil {
		identities = []model.Identity{}
	}

	c.JSON(http.StatusOK, identities)
}
