package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status. Integrity failures are logged and
// reported without their cause.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	e := apperr.As(err)
	if e == nil || e.Kind == apperr.KindIntegrity {
		log.Error("request failed", "err", err)
		writeJSON(w, status, errorBody{Error: apperr.CodeIntegrity, Message: "internal error"})
		return
	}
	if e.Kind == apperr.KindExternal {
		log.Error("upstream failure", "code", e.Code, "err", err)
	}
	writeJSON(w, status, errorBody{Error: e.Code, Message: e.Message, Details: e.Details})
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const maxBody = 1 << 20

// bind decodes a JSON body into out and validates its struct tags.
// An empty body is accepted when out has no required fields.
func bind(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid JSON body")
	}
	if err := validate.Struct(out); err != nil {
		e := apperr.Validation("request validation failed")
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				e = e.With(fe.Field(), fe.Tag())
			}
		}
		return e
	}
	return nil
}
