package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/internal/infra/fetchers"
	"github.com/armorlens/api/internal/infra/http/middleware"
	"github.com/armorlens/api/pkg/apierror"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/domain/shared"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/parsers/cloudarmor"
	"github.com/armorlens/api/pkg/validator"
)

// toAPIError maps service and domain errors onto the API error envelope.
// The user-facing messages say how to fix the source where possible.
func toAPIError(err error) *apierror.Error {
	var (
		apiErr    *apierror.Error
		valErrs   validator.ValidationErrors
		statusErr *fetchers.StatusError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &valErrs):
		return apierror.ValidationFailed("Invalid request", valErrs)

	// Source content
	case errors.Is(err, cloudarmor.ErrNoRules):
		return apierror.ValidationFailed(cloudarmor.ErrNoRules.Error(), nil).WithError(err)
	case errors.Is(err, cloudarmor.ErrHTMLResponse):
		return apierror.ValidationFailed(cloudarmor.ErrHTMLResponse.Error(), nil).WithError(err)
	case errors.Is(err, fetchers.ErrTooLarge), middleware.IsBodyTooLarge(err):
		return apierror.New(http.StatusRequestEntityTooLarge, apierror.CodeRequestTooLarge,
			"Rule inventory exceeds the size limit").WithError(err)

	// Upstream
	case errors.Is(err, cloudarmor.ErrAccessDenied):
		return apierror.UpstreamDenied(cloudarmor.ErrAccessDenied.Error(), err)
	case errors.As(err, &statusErr):
		return apierror.UpstreamFailed(
			fmt.Sprintf("Failed to fetch the rule inventory: upstream returned HTTP %d", statusErr.StatusCode), err)
	case errors.Is(err, fetchers.ErrCircuitOpen):
		return apierror.ServiceUnavailable(fetchers.ErrCircuitOpen.Error()).WithError(err)
	case errors.Is(err, fetchers.ErrBlockedURL):
		return apierror.BadRequest("The URL points to a destination that is not allowed").WithError(err)
	case errors.Is(err, app.ErrFetchThrottled):
		return apierror.New(http.StatusTooManyRequests, apierror.CodeRateLimitExceeded,
			"This source was fetched too often, retry later").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.Timeout().WithError(err)

	// Domain
	case errors.Is(err, dataset.ErrNoDataset):
		return apierror.New(http.StatusNotFound, apierror.CodeNotFound,
			"No rule inventory loaded: load a sheet, object or CSV upload first").WithError(err)
	case shared.IsNotFound(err):
		return apierror.New(http.StatusNotFound, apierror.CodeNotFound, domainMessage(err)).WithError(err)
	case shared.IsValidation(err):
		return apierror.BadRequest(domainMessage(err)).WithError(err)
	case shared.IsUnavailable(err):
		return apierror.ServiceUnavailable(domainMessage(err)).WithError(err)
	default:
		return apierror.InternalError(err)
	}
}

// domainMessage returns a DomainError's message, or the error text.
func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// writeError maps err, logs server-side failures and writes the response.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	apiErr := toAPIError(err)
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusBadGateway:
		log.Error("request failed", "error", err, "path", r.URL.Path, "request_id", requestID)
	case apiErr.Status >= http.StatusBadRequest:
		log.Warn("request rejected", "error", err, "code", apiErr.Code, "request_id", requestID)
	}

	apiErr.WriteJSONWithRequestID(w, requestID)
}
