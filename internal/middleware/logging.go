package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Logging writes a concise key=value line for each HTTP request.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			rid, _ := c.Get(ContextKeyRequestID).(string)
			uid, _ := c.Get(ContextKeyUserID).(string)
			line := "request_id=%s method=%s path=%s query=%q status=%d latency=%s ip=%s"
			args := []any{rid, req.Method, req.URL.Path, req.URL.RawQuery, c.Response().Status, latency, c.RealIP()}
			if uid != "" {
				line += " user_id=%s"
				args = append(args, uid)
			}
			if err != nil {
				line += " error=%q"
				args = append(args, err.Error())
			}
			log.Printf(line, args...)

			return err
		}
	}
}
