package services

import "errors"

// ServiceError represents structured service layer errors
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUpstream     = "UPSTREAM_ERROR"
	ErrCodeTooLarge     = "PAYLOAD_TOO_LARGE"
)

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code string) bool {
	var serr ServiceError
	return errors.As(err, &serr) && serr.Code == code
}
