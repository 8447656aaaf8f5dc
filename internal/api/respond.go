// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/logging"
	"github.com/dikser/dikser/pkg/errutil"
)

const internalErrorMessage = "internal server error"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(body)
}

// writeError renders err as {"error", "code"} with the status of its kind.
// Internal failures are logged and their details withheld.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errutil.KindOf(err)
	view := errorView{RequestID: logging.RequestID(r.Context())}
	if oopsErr, ok := oops.AsOops(err); ok {
		view.Code, _ = oopsErr.Code().(string)
	}
	if kind == errutil.KindInternal {
		errutil.LogError(h.logger, "request failed", err)
		view.Error = internalErrorMessage
	} else {
		view.Error = errutil.Message(err)
	}
	writeJSON(w, kind.HTTPStatus(), view)
}

// decodeJSON reads a single JSON object with unknown fields rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		return oops.Code("REQUEST_INVALID").Wrap(errutil.Tag(errutil.KindBadRequest, msg, err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return oops.Code("REQUEST_INVALID").Wrap(errutil.BadRequest("body must contain a single JSON object"))
	}
	return nil
}
