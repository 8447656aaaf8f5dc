// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package content

import (
	"fmt"
	"net/url"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxCaptionLength  = 2200
	MaxURLLength      = 2048
	MaxMimeTypeLength = 255
)

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCaption checks that a caption is valid UTF-8 and within length.
// Empty captions are allowed.
func ValidateCaption(caption string) error {
	if !utf8.ValidString(caption) {
		return &ValidationError{Field: "caption", Message: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return &ValidationError{Field: "caption", Message: fmt.Sprintf("exceeds maximum length of %d", MaxCaptionLength)}
	}
	return nil
}

// ValidateVisibility checks that v is public or private.
func ValidateVisibility(v Visibility) error {
	if !v.Valid() {
		return &ValidationError{Field: "visibility", Message: fmt.Sprintf("must be %q or %q", VisibilityPublic, VisibilityPrivate)}
	}
	return nil
}

// ValidateAttachment checks the attachment URL and MIME type.
func ValidateAttachment(in *CreateAttachmentInput) error {
	if in.URL == "" {
		return &ValidationError{Field: "attachment.url", Message: "cannot be empty"}
	}
	if len(in.URL) > MaxURLLength {
		return &ValidationError{Field: "attachment.url", Message: fmt.Sprintf("exceeds maximum length of %d", MaxURLLength)}
	}
	u, err := url.Parse(in.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "attachment.url", Message: "must be an absolute URL"}
	}
	if len(in.MimeType) > MaxMimeTypeLength {
		return &ValidationError{Field: "attachment.mime_type", Message: fmt.Sprintf("exceeds maximum length of %d", MaxMimeTypeLength)}
	}
	return nil
}

func validateCreate(in CreatePostInput, attachment *CreateAttachmentInput) error {
	if err := ValidateCaption(in.Caption); err != nil {
		return err
	}
	if err := ValidateVisibility(in.Visibility); err != nil {
		return err
	}
	if attachment != nil {
		return ValidateAttachment(attachment)
	}
	return nil
}

func validateUpdate(in UpdatePostInput) error {
	if in.IsEmpty() {
		return &ValidationError{Field: "post", Message: "no fields to update"}
	}
	if in.Caption != nil {
		if err := ValidateCaption(*in.Caption); err != nil {
			return err
		}
	}
	if in.Visibility != nil {
		return ValidateVisibility(*in.Visibility)
	}
	return nil
}
