package httperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/util"
)

// HTTPError is the JSON error body of every failed API request.
type HTTPError struct {
	Code     int    `json:"status"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Internal error  `json:"-"`
}

func NewHTTPError(code int, errorType string, title string) *HTTPError {
	return &HTTPError{Code: code, Type: errorType, Title: title}
}

// NewFromEcho converts an echo error so all errors share one body shape.
func NewFromEcho(e *echo.HTTPError) *HTTPError {
	return &HTTPError{
		Code:     e.Code,
		Type:     TypeGeneric,
		Title:    http.StatusText(e.Code),
		Detail:   fmt.Sprintf("%v", e.Message),
		Internal: e.Internal,
	}
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTPError %d (%s): %s - %s", e.Code, e.Type, e.Title, e.Detail)
	}

	return fmt.Sprintf("HTTPError %d (%s): %s", e.Code, e.Type, e.Title)
}

// WithDetail returns a copy of e carrying detail.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	c := *e
	c.Detail = detail

	return &c
}

// HTTPErrorHandler is installed as echo's error handler.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *HTTPError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
	case errors.As(err, &echoErr):
		httpErr = NewFromEcho(echoErr)
	default:
		httpErr = &HTTPError{
			Code:     http.StatusInternalServerError,
			Type:     TypeGeneric,
			Title:    http.StatusText(http.StatusInternalServerError),
			Internal: err,
		}
	}

	log := util.LogFromContext(c.Request().Context())
	if httpErr.Code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", httpErr.Code).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", httpErr.Code).Msg("Request rejected")
	}

	var respErr error
	if c.Request().Method == http.MethodHead {
		respErr = c.NoContent(httpErr.Code)
	} else {
		respErr = c.JSON(httpErr.Code, httpErr)
	}
	if respErr != nil {
		log.Warn().Err(respErr).Msg("Failed to write error response")
	}
}
