package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskcart-api/domain"
	"taskcart-api/store"
)

const streamKeepAlive = 15 * time.Second

type streamEvent struct {
	Tasks      []domain.Task     `json:"tasks"`
	Cart       []domain.CartLine `json:"cart"`
	ItemCount  int               `json:"itemCount"`
	TotalPrice float64           `json:"totalPrice"`
}

// streamState pushes a state snapshot over server-sent events on every
// committed mutation, starting with the current state.
func streamState(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		// Subscriber callbacks run inside the store lock, so they only hand
		// the snapshot to the writer goroutine. A full buffer drops the
		// stale pending snapshot in favor of the newest one.
		updates := make(chan store.State, 1)
		unsub := board.Subscribe(func(st store.State) {
			for {
				select {
				case updates <- st:
					return
				default:
					select {
					case <-updates:
					default:
					}
				}
			}
		})
		defer unsub()

		if err := writeStateEvent(c, flusher, board.Get()); err != nil {
			return nil
		}

		ctx := c.Request().Context()
		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case st := <-updates:
				if err := writeStateEvent(c, flusher, st); err != nil {
					return nil
				}
			case <-keepAlive.C:
				if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeStateEvent(c echo.Context, flusher http.Flusher, st store.State) error {
	data, err := sonic.Marshal(streamEvent{
		Tasks:      st.Tasks,
		Cart:       st.Cart,
		ItemCount:  domain.ItemCount(st.Cart),
		TotalPrice: domain.TotalPrice(st.Cart),
	})
	if err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
