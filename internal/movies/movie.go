package movies

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when no movie exists with the requested id.
var ErrNotFound = errors.New("movie not found")

type Movie struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year"`
}

// Input is the body accepted by create and update. Fields are pointers so
// a missing field can be told apart from a zero value.
type Input struct {
	Title *string `json:"title"`
	Year  *int    `json:"year"`
}

// ValidationError reports a create or update payload that can't be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (in Input) Validate() error {
	switch {
	case in.Title == nil:
		return &ValidationError{Field: "title", Reason: "field required"}
	case in.Year == nil:
		return &ValidationError{Field: "year", Reason: "field required"}
	}
	return nil
}

// DecodeInput reads an Input from r. A field of the wrong JSON type is
// reported as a ValidationError; any other malformed body is returned as is.
func DecodeInput(r io.Reader) (Input, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Input{}, &ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("must be %s", typeErr.Type)}
		}
		return Input{}, err
	}
	return in, in.Validate()
}
