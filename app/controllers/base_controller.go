package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"error": message,
	})
}

// requestID 由请求ID过滤器写入
func (c *BaseController) requestID() string {
	if id, ok := c.Ctx.Input.GetData("request_id").(string); ok {
		return id
	}
	return c.Ctx.Input.Header("X-Request-ID")
}

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]string{"message": "Deep Analysis Service API"})
}
