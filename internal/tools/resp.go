package tools

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chode/config"
)

const (
	CodeSuccess = config.SuccessReplyCode
	CodeFail    = config.FailReplyCode
)

type JsonResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func FailWithMsg(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, JsonResponse{Code: CodeFail, Message: msg})
	c.Abort()
}

func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, JsonResponse{Code: CodeSuccess, Message: msg, Data: data})
}
