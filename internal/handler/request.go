package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/middleware"
)

// maxBodyBytes caps JSON request bodies. Image data URIs travel inside
// mutation values, so this is well above a plain form post.
const maxBodyBytes = 8 << 20

// decodeJSON reads a single JSON object from the request body into dst and
// validates it with v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	const op = "handler.decode"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Wrap(err, domain.ETOOLARGE, op, "Request body is too large.")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is empty.")
		default:
			return domain.Wrap(err, domain.EINVALID, op, "Request body is not valid JSON.")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object.")
	}

	if v == nil {
		return nil
	}
	return validateStruct(v, op, dst)
}

// validateStruct runs struct tag validation and converts failures into a
// domain.ValidationError keyed by JSON field name.
func validateStruct(v *validator.Validate, op string, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Wrap(err, domain.EINVALID, op, "Request could not be validated.")
	}
	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		domain.AddFieldError(ve, fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s.", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid.", fe.Field())
	}
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// pathInt parses a positive integer path parameter.
func pathInt(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.Errorf(domain.EINVALID, "handler.path", "%s must be a positive integer", name)
	}
	return n, nil
}

// clientID returns the id issued by the client middleware.
func clientID(r *http.Request) (string, error) {
	id := middleware.GetClientID(r.Context())
	if id == "" {
		return "", domain.Invalid("handler.client", "Client cookie is missing. Please reload the page.")
	}
	return id, nil
}
