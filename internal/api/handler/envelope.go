package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope statuses.
const (
	StatusSuccess = "Success"
	StatusInfo    = "Info"
	StatusWarning = "Warning"
	StatusError   = "Error"
)

// Envelope is the response body of every Auth and Presence endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// emptyData is rendered instead of null when a reply carries no payload.
var emptyData = struct{}{}

// Success writes a 200 Success envelope. A nil data is rendered as {}.
func Success(c echo.Context, message string, data any) error {
	if data == nil {
		data = emptyData
	}
	return c.JSON(http.StatusOK, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Failure writes an Error envelope with the given HTTP status.
func Failure(c echo.Context, code int, message string) error {
	return c.JSON(code, Envelope{Status: StatusError, Message: message, Data: emptyData})
}
