package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Validator is implemented by request DTOs that carry their own field
// checks. Validate returns one message per problem; an empty slice means
// the request is well formed.
type Validator interface {
	Validate() []string
}

// DecodeAndValidate decodes the request body into dest, rejecting unknown
// fields, then runs dest's Validate when it implements Validator. On
// failure it writes a 400 with the joined messages and returns false; the
// caller must stop handling the request.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return false
	}
	v, ok := dest.(Validator)
	if !ok {
		return true
	}
	if errs := v.Validate(); len(errs) > 0 {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, strings.Join(errs, "; "))
		return false
	}
	return true
}
