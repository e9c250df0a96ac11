package response

import (
	"net/http"

	"VidFlow/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Response{Code: 200, Msg: msg, Data: data})
}

// Accepted 用于已入队、稍后完成的请求
func Accepted(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusAccepted, Response{Code: http.StatusAccepted, Msg: msg, Data: data})
}

// Fail 业务失败，HTTP 状态为 400
func Fail(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Msg: msg, Data: data})
}

func AbortWithStatus(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Msg: msg})
}

// Error answers with the status mapped from err's code.
func Error(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	c.JSON(status, Response{Code: status, Msg: err.Error()})
}
