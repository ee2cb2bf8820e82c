package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var fieldMessages = map[string]string{
	"required":    "field is required",
	"datetime":    "must be a date formatted YYYY-MM-DD",
	"wallclock":   "must be a time such as 9 AM, 2:30 PM or 14:00",
	"endclock":    "must be a time such as 5 PM, 17:30 or 24:00",
	"oneof":       "must be one of: %s",
	"gt":          "must be greater than %s",
	"excludesall": "must not contain a comma",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("wallclock", func(fl validator.FieldLevel) bool {
		_, err := timeslot.ParseClock(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("endclock", func(fl validator.FieldLevel) bool {
		_, err := timeslot.ParseEnd(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the 400 response itself and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		switch {
		case !ok:
			msg = fe.Error()
		case strings.Contains(msg, "%s"):
			msg = fmt.Sprintf(msg, fe.Param())
		}
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		fields = append(fields, FieldError{Field: field, Message: msg})
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: fields})
	return false
}
