package services

import (
	"log/slog"
	"strings"

	"github.com/mbocsi/sigbridge/proto"
)

const attachmentPrefix = "data:image/jpeg;base64,"

func invalidInput(message string) error {
	return ServiceError{Code: ErrCodeInvalidInput, Message: message}
}

func invalidInputErr(err error) error {
	return ServiceError{Code: ErrCodeInvalidInput, Message: err.Error()}
}

// upstreamError hides the daemon's failure from the caller but keeps it for
// operators.
func upstreamError(method string, err error) error {
	slog.Error("Daemon call failed", "method", method, "error", err)
	return ServiceError{Code: ErrCodeUpstream, Message: "Internal server error", Cause: err}
}

func attachmentURIs(attachments []string) []string {
	uris := make([]string, 0, len(attachments))
	for _, a := range attachments {
		uris = append(uris, attachmentPrefix+a)
	}
	return uris
}

func validateTimestamp(ts uint64, field string) error {
	if ts == 0 {
		return invalidInput(field + " is required")
	}
	return nil
}

func validateReceiptType(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", proto.ReceiptRead:
		return proto.ReceiptRead, nil
	case proto.ReceiptViewed:
		return proto.ReceiptViewed, nil
	default:
		return "", invalidInput("Receipt type must be read or viewed")
	}
}
