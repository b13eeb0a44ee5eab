package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler recovers panics raised by next, logs them with their stack
// and answers with an InternalError.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String("request_id", requestID),
					)
					WriteError(w, NewInternalError(requestID, fmt.Errorf("%v", rec)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs err with its request context. ServiceErrors are logged with
// their type and status; client errors are logged at warn level.
func LogError(logger *zap.Logger, err error, requestID string) {
	var serviceErr *ServiceError
	if !As(err, &serviceErr) {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		return
	}

	fields := []zap.Field{
		zap.String("error_type", string(serviceErr.Type)),
		zap.String("message", serviceErr.Message),
		zap.Int("code", serviceErr.Code),
		zap.String("request_id", requestID),
	}
	if serviceErr.err != nil {
		fields = append(fields, zap.NamedError("cause", serviceErr.err))
	}
	if len(serviceErr.Details) > 0 {
		fields = append(fields, zap.Any("details", serviceErr.Details))
	}

	if serviceErr.Code >= http.StatusInternalServerError {
		logger.Error("request error", fields...)
		return
	}
	logger.Warn("request error", fields...)
}
