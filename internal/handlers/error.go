package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"gantry-control/internal/interfaces"
	"gantry-control/internal/utils"

	"github.com/labstack/echo/v4"
)

// NewHTTPErrorHandler is the central error handler for the Echo application.
func NewHTTPErrorHandler(logger interfaces.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *utils.AppError
		if !errors.As(err, &appErr) {
			// Echo's own errors (404 route, 405 method, bind errors) keep their status.
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				_ = c.JSON(httpErr.Code, utils.ErrorResponse(fmt.Sprint(httpErr.Message)))
				return
			}
			logger.Errorf("Unhandled error occurred (%T): %v", err, err)
			_ = c.JSON(http.StatusInternalServerError, utils.ErrorResponse("An unexpected internal error occurred."))
			return
		}

		if appErr.Code >= http.StatusInternalServerError {
			logger.Errorf("Error handled: status=%d message=%s internal=%v", appErr.Code, appErr.Message, appErr.Unwrap())
		} else {
			logger.Warnf("Request rejected: status=%d message=%s", appErr.Code, appErr.Message)
		}

		_ = c.JSON(appErr.Code, utils.ErrorResponse(appErr.Message))
	}
}
