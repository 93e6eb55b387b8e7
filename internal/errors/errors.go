package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jdholdren/clearly/internal/clearly"
)

// Error is the structured error handed back to API callers.
type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
	Status  int      `json:"status"`
}

func (s *Error) MarshalJSON() ([]byte, error) {
	msg := http.StatusText(s.Status)
	if s.Err != nil {
		msg = s.Err.Error()
	}

	return json.Marshal(transport{
		Message: msg,
		Details: s.Details,
		Status:  s.Status,
	})
}

func (s *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	s.Err = errors.New(t.Message)
	s.Details = t.Details
	s.Status = t.Status
	return nil
}

func E(args ...any) *Error {
	ret := &Error{
		Status:  http.StatusInternalServerError,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// FromDomain converts the domain sentinels into their HTTP shaped errors, keeping
// msg as the message the caller sees.
//
// Anything unrecognized is returned unchanged so it becomes a 500 further up.
func FromDomain(err error, msg string) error {
	var status int
	switch {
	case err == nil:
		return nil
	case errors.Is(err, clearly.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, clearly.ErrConflict), errors.Is(err, clearly.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, clearly.ErrExpired):
		status = http.StatusGone
	default:
		return err
	}

	return E(status, msg)
}
