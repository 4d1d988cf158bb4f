package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stackspend/stackspend/internal/apiclient"
)

// Exit codes beyond the generic 1.
const (
	exitUsage        = 2
	exitUnauthorized = 3
	exitRejected     = 4
)

type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// apiExit gives server-side rejections their own exit codes so scripts can tell a bad
// token from bad input.
func apiExit(err error) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return &exitError{code: exitUnauthorized, err: fmt.Errorf("%w (run `stackspend api login` for a new token)", err)}
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return &exitError{code: exitRejected, err: err}
	}
	return err
}
