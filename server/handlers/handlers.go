// Package handlers provides the HTTP handlers of the prompt2json server.
//
// Every handler answers with JSON. Failures use the errors package so that
// clients always find a human readable message under the "error" key.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/circuitbreaker"
	"github.com/teilomillet/prompt2json/server/middleware"
	"github.com/teilomillet/prompt2json/server/processing"
	"go.uber.org/zap"
)

const (
	msgMissingPrompt = "Missing 'prompt' field in request body"
	msgInvalidJSON   = "Invalid JSON body"
	msgBodyTooLarge  = "Request body too large"
)

// API serves the transform and cache endpoints.
type API struct {
	processor    *processing.Processor
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewAPI creates the handler set. maxBodyBytes bounds request bodies; a
// non-positive value disables the bound.
func NewAPI(processor *processing.Processor, logger *zap.Logger, maxBodyBytes int64) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		processor:    processor,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.DefaultLogger.Error("failed to encode response", zap.Error(err))
	}
}

// decodeBody reads a JSON object from the request into dst. It writes the
// error response itself and returns false on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	requestID := middleware.GetRequestID(r.Context())

	body := r.Body
	if a.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, errors.NewError(errors.BadRequestError, msgBodyTooLarge,
				http.StatusRequestEntityTooLarge, requestID,
				map[string]interface{}{"limit": tooLarge.Limit}, err))
			return false
		}
		a.logger.Debug("rejecting malformed body", zap.Error(err), zap.String("request_id", requestID))
		errors.WriteError(w, errors.NewBadRequestError(requestID, msgInvalidJSON, err))
		return false
	}
	return true
}

// promptValue decodes the raw prompt field. A missing field reports false;
// JSON null decodes to nil and is left for validation to reject.
func promptValue(raw json.RawMessage) (interface{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, true
	}
	return v, true
}

// validatedPrompt extracts and validates the prompt, writing a 400 response
// when it is missing or invalid.
func (a *API) validatedPrompt(w http.ResponseWriter, r *http.Request, raw json.RawMessage) (string, bool) {
	requestID := middleware.GetRequestID(r.Context())

	v, ok := promptValue(raw)
	if !ok {
		errors.WriteError(w, errors.NewBadRequestError(requestID, msgMissingPrompt, nil))
		return "", false
	}
	if err := a.processor.Validate(v); err != nil {
		errors.WriteError(w, errors.NewValidationError(requestID, err.Error(), nil))
		return "", false
	}
	return v.(string), true
}

// writeProcessingError maps a failed transform to 503 while the breaker is
// open and to 500 otherwise.
func (a *API) writeProcessingError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var serviceErr *errors.ServiceError
	switch {
	case circuitbreaker.IsRejected(err):
		serviceErr = errors.NewUnavailableError(requestID, err)
	default:
		serviceErr = errors.NewInternalError(requestID, err)
	}
	errors.LogError(a.logger, serviceErr, requestID)
	errors.WriteError(w, serviceErr)
}
