package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrMalformedAttachment):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrAttachmentNotFound),
		errors.Is(err, domain.ErrStateNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrUnknownParty):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrNotaryConflict),
		errors.Is(err, domain.ErrStateConsumed),
		errors.Is(err, domain.ErrCounterpartyRejected):
		return http.StatusConflict

	case errors.Is(err, domain.ErrAttachmentResolution),
		errors.Is(err, domain.ErrNotInWhitelist),
		errors.Is(err, domain.ErrStructuralViolation),
		errors.Is(err, domain.ErrMultipleOrMissingCommand),
		errors.Is(err, domain.ErrUnknownContract),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrMissingSignatures):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err with its reason code. Internal errors are
// logged and their text is not exposed.
func WriteDomainError(w http.ResponseWriter, r *http.Request, flowID string, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: domain.ReasonCode(err), Message: err.Error(), FlowID: flowID}
	if status == http.StatusInternalServerError {
		observability.GetLogger(r.Context()).Error("internal_error", zap.String("flow_id", flowID), zap.Error(err))
		resp.Error = "internal_error"
		resp.Message = "an unexpected error occurred"
	}
	WriteJSON(w, status, resp)
}
