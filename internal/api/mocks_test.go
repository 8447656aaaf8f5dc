// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api_test

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/content"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Authenticate(ctx context.Context, username, password string) (*auth.Authenticated, error) {
	args := m.Called(ctx, username, password)
	result, _ := args.Get(0).(*auth.Authenticated)
	return result, args.Error(1)
}

func (m *mockAuth) ValidateToken(ctx context.Context, token string) (auth.Principal, error) {
	args := m.Called(ctx, token)
	p, _ := args.Get(0).(auth.Principal)
	return p, args.Error(1)
}

func (m *mockAuth) Logout(ctx context.Context, userID ulid.ULID) error {
	return m.Called(ctx, userID).Error(0)
}

type mockPosts struct {
	mock.Mock
}

func (m *mockPosts) CreatePost(ctx context.Context, caller auth.Principal, in content.CreatePostInput, attachment *content.CreateAttachmentInput) (*content.Post, error) {
	args := m.Called(ctx, caller, in, attachment)
	post, _ := args.Get(0).(*content.Post)
	return post, args.Error(1)
}

func (m *mockPosts) ListPosts(ctx context.Context) ([]*content.Post, error) {
	args := m.Called(ctx)
	posts, _ := args.Get(0).([]*content.Post)
	return posts, args.Error(1)
}

func (m *mockPosts) GetPost(ctx context.Context, id ulid.ULID) (*content.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*content.Post)
	return post, args.Error(1)
}

func (m *mockPosts) UpdatePost(ctx context.Context, caller auth.Principal, in content.UpdatePostInput) (*content.Post, error) {
	args := m.Called(ctx, caller, in)
	post, _ := args.Get(0).(*content.Post)
	return post, args.Error(1)
}

func (m *mockPosts) RemovePost(ctx context.Context, caller auth.Principal, id ulid.ULID) (*content.DeletionReceipt, error) {
	args := m.Called(ctx, caller, id)
	receipt, _ := args.Get(0).(*content.DeletionReceipt)
	return receipt, args.Error(1)
}
