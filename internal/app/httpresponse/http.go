package httpresponse

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// APIError is the body of every error response: {"error": "..."}.
type APIError struct {
	ErrorMessage string `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorMessage
}

func Error(error string) *APIError {
	log.Error(error)
	e := &APIError{
		ErrorMessage: error,
	}
	return e
}

func Errorf(error string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(error, a...))
}

// JSON writes status with an APIError body.
func JSON(c echo.Context, status int, format string, a ...interface{}) error {
	return c.JSON(status, Errorf(format, a...))
}

// ErrorHandler renders echo's own errors (unknown route, wrong method, bad bind)
// as APIError bodies so no handler ever answers with a non JSON error.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}

	if err := c.JSON(status, Error(message)); err != nil {
		log.Error(err)
	}
}
