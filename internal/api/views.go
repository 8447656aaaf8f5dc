// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api

import (
	"time"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/content"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      userView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type attachmentRequest struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

type createPostRequest struct {
	Caption    string             `json:"caption"`
	Visibility string             `json:"visibility"`
	Attachment *attachmentRequest `json:"attachment,omitempty"`
}

type updatePostRequest struct {
	Caption    *string `json:"caption,omitempty"`
	Visibility *string `json:"visibility,omitempty"`
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type relationshipView struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	Partners []userView `json:"partners"`
}

type attachmentView struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

type postView struct {
	ID           string            `json:"id"`
	Caption      string            `json:"caption"`
	Visibility   string            `json:"visibility"`
	Author       userView          `json:"author"`
	Relationship *relationshipView `json:"relationship,omitempty"`
	Attachment   *attachmentView   `json:"attachment,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type receiptView struct {
	Post   postView `json:"post"`
	Status string   `json:"status"`
	Code   int      `json:"code"`
}

type errorView struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func toUserView(u *auth.User) userView {
	return userView{ID: u.ID.String(), Username: u.Username}
}

func toSummaryView(u content.UserSummary) userView {
	return userView{ID: u.ID.String(), Username: u.Username}
}

func toPostView(p *content.Post) postView {
	v := postView{
		ID:         p.ID.String(),
		Caption:    p.Caption,
		Visibility: string(p.Visibility),
		Author:     toSummaryView(p.Author),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if r := p.Relationship; r != nil {
		partners := make([]userView, 0, len(r.Partners))
		for _, partner := range r.Partners {
			partners = append(partners, toSummaryView(partner))
		}
		v.Relationship = &relationshipView{ID: r.ID.String(), Status: string(r.Status), Partners: partners}
	}
	if a := p.Attachment; a != nil {
		v.Attachment = &attachmentView{ID: a.ID.String(), URL: a.URL, MimeType: a.MimeType}
	}
	return v
}

func toPostViews(posts []*content.Post) []postView {
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostView(p))
	}
	return out
}
