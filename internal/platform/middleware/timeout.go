package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context and answers 504 when
// the handler does not finish in time. Paths under any of skipPrefixes (for
// example /metrics) are left untouched.
//
// The handler writes into a buffer that reaches the client only if it finishes
// before the deadline. On timeout the 504 is sent at once, later handler writes
// fail with http.ErrHandlerTimeout, and the middleware still waits for the
// handler to return so the echo.Context is never shared after the request ends.
func RequestTimeout(timeout time.Duration, skipPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range skipPrefixes {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			resp := c.Response()
			orig := resp.Writer
			tw := &timeoutWriter{header: orig.Header().Clone()}
			resp.Writer = tw

			done := make(chan handlerResult, 1)
			go func() {
				var r handlerResult
				defer func() {
					if p := recover(); p != nil {
						r.panicked = p
					}
					done <- r
				}()
				r.err = next(c)
			}()

			var r handlerResult
			select {
			case r = <-done:
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					r = <-done
					break
				}
				tw.expire()
				n := writeTimeoutBody(orig)
				r = <-done

				resp.Writer = orig
				if r.panicked != nil {
					panic(r.panicked)
				}
				resp.Status = http.StatusGatewayTimeout
				resp.Committed = true
				resp.Size = int64(n)
				return nil
			}

			resp.Writer = orig
			if r.panicked != nil {
				panic(r.panicked)
			}
			tw.copyTo(orig)
			return r.err
		}
	}
}

type handlerResult struct {
	err      error
	panicked interface{}
}

// timeoutWriter buffers a handler's response. Once expired it drops every
// further write.
type timeoutWriter struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	body    bytes.Buffer
	expired bool
}

func (w *timeoutWriter) Header() http.Header { return w.header }

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expired || w.status != 0 {
		return
	}
	w.status = code
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expired {
		return 0, http.ErrHandlerTimeout
	}
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

// Flush is a no-op; the body is sent as a whole once the handler returns.
func (w *timeoutWriter) Flush() {}

func (w *timeoutWriter) expire() {
	w.mu.Lock()
	w.expired = true
	w.mu.Unlock()
}

// copyTo replays the buffered response onto dst. Must only be called after
// the handler has returned.
func (w *timeoutWriter) copyTo(dst http.ResponseWriter) {
	h := dst.Header()
	for k, v := range w.header {
		h[k] = v
	}
	if w.status == 0 {
		return
	}
	dst.WriteHeader(w.status)
	_, _ = dst.Write(w.body.Bytes())
}

func writeTimeoutBody(w http.ResponseWriter) int {
	body, _ := json.Marshal(errorBody{Error: errorDetail{
		Code:    "timeout",
		Message: "request processing exceeded the allowed time limit",
	}})
	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(http.StatusGatewayTimeout)
	n, _ := w.Write(body)
	return n
}
