package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/daviddao/potluck/pkg/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and the user-facing message.
type ErrorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func renderError(c *gin.Context, err error) {
	code := apperr.GetCode(err)
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}
	msg := apperr.PublicMessage(err)
	if code == apperr.CodeInternal {
		msg = "an unexpected error occurred"
	}
	_ = c.Error(err)
	c.JSON(code.HTTPStatus(), ErrorBody{Error: ErrorDetail{Code: code, Message: msg}})
}

func abort(c *gin.Context, err error) {
	renderError(c, err)
	c.Abort()
}
