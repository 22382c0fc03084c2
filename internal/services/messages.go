package services

import (
	"context"
	"errors"
	"fmt"

	"expensinator/internal/core"
	"expensinator/internal/log"
	"expensinator/internal/remote"
)

// Actions name what the user was doing when an error surfaced.
const (
	ActionFetching  = "fetching expenses"
	ActionAdding    = "adding expense"
	ActionDeleting  = "deleting expenses"
	ActionSaving    = "saving edited expenses"
	ActionUploading = "uploading receipt"
	ActionImporting = "importing receipt"
)

// UserMessage turns any error into the text shown to the user. Invalid input
// is reported inline; everything else gets a generic retry message.
func UserMessage(action string, err error) string {
	if err == nil {
		return ""
	}
	var inv *core.InvalidInputError
	if errors.As(err, &inv) {
		return fmt.Sprintf("Invalid expense data. Please check the %s field.", inv.Field)
	}
	return fmt.Sprintf("Error %s. Please try again later.", action)
}

// ErrorType classifies err for logging.
func ErrorType(err error) string {
	var (
		inv  *core.InvalidInputError
		terr *remote.TransportError
		rerr *remote.RemoteOperationFailedError
		derr *remote.DecodingError
	)
	switch {
	case errors.As(err, &inv):
		return log.ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	case errors.As(err, &terr):
		return log.ErrorTypeNetwork
	case errors.As(err, &rerr):
		return log.ErrorTypeRemote
	case errors.As(err, &derr):
		return log.ErrorTypeDecoding
	default:
		return log.ErrorTypeInternal
	}
}
