package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/account-gate/internal/apperror"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 16 << 10

var requestValidator = newValidator()

// newValidator reports fields by their JSON names so error messages match
// what the client sent.
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

// decodeAndValidate decodes exactly one JSON object into dst and runs the
// struct's validate tags. Errors are *apperror.AppError validation errors.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Invalid JSON body.")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("", "Invalid JSON body.")
	}

	if err := requestValidator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			field := first.Field()
			switch first.Tag() {
			case "required":
				return apperror.ValidationFailed(field, field+" is required.")
			case "max":
				return apperror.ValidationFailed(field, field+" is too long.")
			case "url":
				return apperror.ValidationFailed(field, field+" must be a valid URL.")
			default:
				return apperror.ValidationFailed(field, "Invalid "+field+".")
			}
		}
		return apperror.ValidationFailed("", "Invalid request payload.")
	}
	return nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer.")
	}
	return n, nil
}
