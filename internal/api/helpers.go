// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/middleware"
	"github.com/bibleos/ark/internal/models"
	"github.com/bibleos/ark/internal/validation"
)

// maxRequestBody caps request bodies; every endpoint takes a few IDs and
// flags at most.
const maxRequestBody = 64 << 10

// sanitizeLogValue escapes control characters so request-derived strings
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends an envelope with proper headers, stamping the request ID
// into the metadata.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response models.APIResponse) {
	response.Metadata.RequestID = middleware.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error envelope and logs the underlying cause.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, r, status, models.NewErrorResponse(code, message))
}

// decodeAndValidate parses the JSON body into req and runs struct
// validation. On failure it writes the error response itself and returns
// false. An empty body is allowed when the request struct has no required
// fields.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	// An empty body decodes to the zero request and is validated like any
	// other.
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation,
			"request body is not valid JSON", err)
		return false
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		resp := models.NewErrorResponse(apiErr.Code, apiErr.Message)
		resp.Error.Details = apiErr.Details
		respondJSON(w, r, http.StatusBadRequest, resp)
		return false
	}
	return true
}
