package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

const streamKeepAlive = 30 * time.Second

// stream pushes snapshot() as a server-sent event now and after every signal
// on changes, until the client goes away.
func stream(c echo.Context, changes <-chan struct{}, keepAlive time.Duration, snapshot func() (any, error)) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "stream unsupported"})
	}
	res.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		v, err := snapshot()
		if err != nil {
			return err
		}
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		if err := writeEvent(res, data); err != nil {
			return nil
		}
		flusher.Flush()

		for waiting := true; waiting; {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				waiting = false
			case <-ticker.C:
				if _, err := res.Write([]byte(":keepalive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
