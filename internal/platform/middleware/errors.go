package middleware

import "github.com/labstack/echo/v4"

// errorBody is the JSON shape of errors written directly by middleware.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c echo.Context, status int, code, message string) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
