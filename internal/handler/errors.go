package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"consign-review-api/internal/middleware"
	"consign-review-api/internal/model"
	"consign-review-api/internal/workflow"
	"consign-review-api/pkg/apierror"
	"consign-review-api/pkg/response"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst interface{}) *apierror.Error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid request body")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]apierror.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, apierror.FieldError{
					Field:   fe.Field(),
					Message: fe.Tag() + " constraint failed",
				})
			}
			return apierror.ValidationError("request validation failed", details...)
		}
		return apierror.BadRequest("invalid request body")
	}
	return nil
}

// toAPIError maps workflow failures onto the HTTP error envelope.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var we *workflow.Error
	if !errors.As(err, &we) {
		return apierror.InternalError("")
	}

	switch we.Kind {
	case workflow.KindValidation:
		if we.Field != "" {
			return apierror.ValidationError(we.Message, apierror.FieldError{Field: we.Field, Message: we.Message})
		}
		return apierror.ValidationError(we.Message)
	case workflow.KindNotAllowed:
		return apierror.Unprocessable(we.Message)
	case workflow.KindForbidden:
		return apierror.Forbidden(we.Message)
	case workflow.KindConflict:
		return apierror.Conflict(we.Message)
	case workflow.KindNotFound:
		return apierror.NotFound(we.Message)
	case workflow.KindRejected:
		e := apierror.BadRequest(we.Message)
		e.Code = "REJECTED"
		return e
	case workflow.KindUnavailable:
		return apierror.ServiceUnavailable(we.Message)
	case workflow.KindCanceled:
		return apierror.RequestTimeout(we.Message)
	}
	return apierror.BadGateway(we.Message)
}

// writeErr logs server-side failures and writes the error envelope.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"component":  "Handler",
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).WithError(err).Error("Request failed")
	}
	response.Error(w, apiErr)
}

// actorFrom builds the acting operator from the authenticated request.
func actorFrom(r *http.Request) (model.Actor, bool) {
	data := middleware.GetTokenDataFromContext(r.Context())
	if data == nil {
		return model.Actor{}, false
	}
	return data.Actor(middleware.GetRequestID(r.Context())), true
}
