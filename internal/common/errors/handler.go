// internal/common/errors/handler.go
package errors

// ErrorHandler logs failures in one consistent shape.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it and returns the normalized value. Client-side
// rejections (validation, pre-flight, session) are logged at warn level,
// everything else at error level.
func (h *ErrorHandler) Handle(operation string, err error) *StandardError {
	stdErr := Normalize(err)
	if stdErr == nil {
		return nil
	}

	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if status, ok := stdErr.Status(); ok {
		fields["statusCode"] = status
	}
	if stdErr.Details != "" {
		fields["details"] = stdErr.Details
	}
	if len(stdErr.Violations) > 0 {
		fields["violations"] = stdErr.Violations
	}

	switch GetErrorCategory(stdErr.Code) {
	case "VALIDATION", "PREFLIGHT", "SESSION":
		h.logger.Warn("operation rejected", fields)
	default:
		h.logger.Error("operation failed", fields)
	}
	return stdErr
}
