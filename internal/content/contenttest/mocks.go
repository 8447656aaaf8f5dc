// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package contenttest provides testify mocks for the content repositories.
package contenttest

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/dikser/dikser/internal/content"
)

// T is the subset of testing.TB the mocks need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockPostRepository mocks content.PostRepository.
type MockPostRepository struct {
	mock.Mock
}

// NewMockPostRepository creates a mock that asserts its expectations on cleanup.
func NewMockPostRepository(t T) *MockPostRepository {
	m := &MockPostRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPostRepository) Create(ctx context.Context, post *content.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id ulid.ULID) (*content.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*content.Post)
	return post, args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context) ([]*content.Post, error) {
	args := m.Called(ctx)
	posts, _ := args.Get(0).([]*content.Post)
	return posts, args.Error(1)
}

func (m *MockPostRepository) UpdateFields(ctx context.Context, id ulid.ULID, update content.PostUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockAttachmentRepository mocks content.AttachmentRepository.
type MockAttachmentRepository struct {
	mock.Mock
}

// NewMockAttachmentRepository creates a mock that asserts its expectations on cleanup.
func NewMockAttachmentRepository(t T) *MockAttachmentRepository {
	m := &MockAttachmentRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *content.Attachment) error {
	return m.Called(ctx, attachment).Error(0)
}

func (m *MockAttachmentRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockRelationshipRepository mocks content.RelationshipRepository.
type MockRelationshipRepository struct {
	mock.Mock
}

// NewMockRelationshipRepository creates a mock that asserts its expectations on cleanup.
func NewMockRelationshipRepository(t T) *MockRelationshipRepository {
	m := &MockRelationshipRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRelationshipRepository) GetByID(ctx context.Context, id ulid.ULID) (*content.Relationship, error) {
	args := m.Called(ctx, id)
	rel, _ := args.Get(0).(*content.Relationship)
	return rel, args.Error(1)
}
