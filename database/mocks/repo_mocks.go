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

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nordlion/nordlion/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Identity methods

func (m *MockDataSource) CreateIdentity(identity model.Identity) (model.Identity, error) {
	args := m.Called(identity)
	return args.Get(0).(model.Identity), args.Error(1)
}

func (m *MockDataSource) GetIdentityByID(id string) (*model.Identity, error) {
	args := m.Called(id)
	identity, _ := args.Get(0).(*model.Identity)
	return identity, args.Error(1)
}

func (m *MockDataSource) GetAllIdentities() ([]model.Identity, error) {
	args := m.Called()
	identities, _ := args.Get(0).([]model.Identity)
	return identities, args.Error(1)
}

func (m *MockDataSource) UpdateIdentity(identity *model.Identity) error {
	args := m.Called(identity)
	return args.Error(0)
}

func (m *MockDataSource) DeleteIdentity(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// KYC methods

func (m *MockDataSource) CreateKYC(ctx context.Context, record *model.KYCRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) ResubmitKYC(ctx context.Context, record *model.KYCRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) GetKYCByID(ctx context.Context, id string) (*model.KYCRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*model.KYCRecord)
	return record, args.Error(1)
}

func (m *MockDataSource) GetKYCByIdentityID(ctx context.Context, identityID string) (*model.KYCRecord, error) {
	args := m.Called(ctx, identityID)
	record, _ := args.Get(0).(*model.KYCRecord)
	return record, args.Error(1)
}

func (m *MockDataSource) GetAllKYC(ctx context.Context, limit, offset int, status model.KYCStatus) ([]model.KYCRecord, error) {
	args := m.Called(ctx, limit, offset, status)
	records, _ := args.Get(0).([]model.KYCRecord)
	return records, args.Error(1)
}

func (m *MockDataSource) UpdateKYCReview(ctx context.Context, record *model.KYCRecord, from model.KYCStatus) error {
	args := m.Called(ctx, record, from)
	return args.Error(0)
}

func (m *MockDataSource) UpdateKYCCompliance(ctx context.Context, record *model.KYCRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) GetApprovedExpiredKYC(ctx context.Context, now time.Time, limit int) ([]model.KYCRecord, error) {
	args := m.Called(ctx, now, limit)
	records, _ := args.Get(0).([]model.KYCRecord)
	return records, args.Error(1)
}

func (m *MockDataSource) MarkKYCExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}
