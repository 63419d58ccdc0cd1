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
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/nordlion/nordlion/api/model"
	"github.com/nordlion/nordlion/model"
)

// SubmitKYC stores a KYC submission, replacing any previous one of the identity.
// The client IP and user agent are recorded for the audit trail.
//
// Responses:
// - 400 Bad Request: If the body is malformed or fails validation.
// - 404 Not Found: If the identity does not exist.
// - 409 Conflict: If the document number belongs to another identity.
// - 201 Created: With the stored record.
func (a Api) SubmitKYC(c *gin.Context) {
	var submission model2.SubmitKYC
	if err := c.ShouldBindJSON(&submission); err != nil {
		badRequest(c, err)
		return
	}
	if err := submission.ValidateSubmitKYC(); err != nil {
		badRequest(c, err)
		return
	}

	record := submission.ToKYCRecord()
	record.IPAddress = c.ClientIP()
	record.UserAgent = c.Request.UserAgent()

	resp, err := a.nordlion.SubmitKYC(c.Request.Context(), record)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetKYC(c *gin.Context) {
	resp, err := a.nordlion.GetKYC(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetKYCByIdentity(c *gin.Context) {
	resp, err := a.nordlion.GetKYCByIdentity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllKYC lists records newest first. Query: limit, offset, status.
func (a Api) GetAllKYC(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a number"})
		return
	}

	records, err := a.nordlion.GetAllKYC(c.Request.Context(), limit, offset, model.KYCStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []model.KYCRecord{}
	}

	c.JSON(http.StatusOK, records)
}

// ReviewKYC applies a reviewer's status change.
//
// Responses:
// - 400 Bad Request: Invalid body or a transition the lifecycle does not allow.
// - 404 Not Found: Unknown record.
// - 409 Conflict: Another reviewer holds the record.
// - 200 OK: With the updated record.
func (a Api) ReviewKYC(c *gin.Context) {
	var review model2.ReviewKYC
	if err := c.ShouldBindJSON(&review); err != nil {
		badRequest(c, err)
		return
	}
	if err := review.ValidateReviewKYC(); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := a.nordlion.ReviewKYC(c.Request.Context(), c.Param("id"), review.ToReviewAction())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateCompliance(c *gin.Context) {
	var update model2.UpdateCompliance
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}
	if err := update.ValidateUpdateCompliance(); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := a.nordlion.UpdateCompliance(c.Request.Context(), c.Param("id"), update.ToComplianceUpdate())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ScreenKYC runs a configured screening provider and records its outcome.
func (a Api) ScreenKYC(c *gin.Context) {
	var screen model2.ScreenKYC
	if err := c.ShouldBindJSON(&screen); err != nil {
		badRequest(c, err)
		return
	}
	if err := screen.ValidateScreenKYC(); err != nil {
		badRequest(c, err)
		return
	}

	record, result, err := a.nordlion.ScreenKYC(c.Request.Context(), c.Param("id"), screen.Provider, screen.ReviewedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": record, "screening": result})
}

// CanTransact answers whether an identity may make a transaction of the given amount.
func (a Api) CanTransact(c *gin.Context) {
	var check model2.CanTransact
	if err := c.ShouldBindJSON(&check); err != nil {
		badRequest(c, err)
		return
	}
	if err := check.ValidateCanTransact(); err != nil {
		badRequest(c, err)
		return
	}

	decision, err := a.nordlion.CanTransact(c.Request.Context(), check.IdentityID, *check.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// GetTiers returns the ceiling of every verification level. A null ceiling is unbounded.
func (a Api) GetTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currency": a.nordlion.Currency(),
		"tiers":    model.Tiers(),
	})
}

// GetScreeningProviders lists the providers POST /kyc/:id/screen accepts.
func (a Api) GetScreeningProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": a.nordlion.Screening().Providers()})
}

// RequestExpirySweep queues an immediate expiry sweep on the workers.
func (a Api) RequestExpirySweep(c *gin.Context) {
	var req model2.RequestSweep
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateRequestSweep(); err != nil {
		badRequest(c, err)
		return
	}

	if err := a.nordlion.RequestExpirySweep(c.Request.Context(), req.RequestedBy); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "expiry sweep queued"})
}
