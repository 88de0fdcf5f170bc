package middleware

import (
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware 沿用调用方的请求ID，没有时生成一个
func RequestIDMiddleware(ctx *context.Context) {
	id := ctx.Input.Header(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData("request_id", id)
	ctx.Output.Header(RequestIDHeader, id)
}
