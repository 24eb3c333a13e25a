package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamReply answers one ClientMessage received on the stream.
type StreamReply struct {
	Outcomes interface{} `json:"outcomes,omitempty"`
	Error    interface{} `json:"error,omitempty"`
}

// streamClient is one page connection. The read pump ingests the page batches; the write pump is the only
// writer on the connection and forwards the attempt commands and the replies.
type streamClient struct {
	api     *attemptApi
	id      string
	conn    *websocket.Conn
	replies chan StreamReply
	done    chan struct{}
}

func (api *attemptApi) stream(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	cmds, err := api.svc.Commands(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "getting command outbox")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		api.logger.Info(fmt.Sprintf("attempt %s: upgrading stream: %v", a.ID, err))
		return nil
	}

	c := &streamClient{
		api:     api,
		id:      a.ID,
		conn:    conn,
		replies: make(chan StreamReply, 16),
		done:    make(chan struct{}),
	}
	api.logger.Info(fmt.Sprintf("attempt %s: stream connected", a.ID))
	go c.writePump(cmds)
	c.readPump()
	api.logger.Info(fmt.Sprintf("attempt %s: stream disconnected", a.ID))
	return nil
}

// readPump ingests page messages until the connection fails.
func (c *streamClient) readPump() {
	defer func() {
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.api.logger.Warn(fmt.Sprintf("attempt %s: stream read: %v", c.id, err), err)
			}
			return
		}

		reply := c.handle(data)
		select {
		case c.replies <- reply:
		default:
			c.api.logger.Warn(fmt.Sprintf("attempt %s: stream reply dropped", c.id))
		}
	}
}

func (c *streamClient) handle(data []byte) StreamReply {
	var msg attempt.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StreamReply{Error: "malformed message"}
	}
	if err := msg.Validate(c.api.validate); err != nil {
		return StreamReply{Error: validationMessage(err, c.api)}
	}

	outcomes, err := c.api.svc.Ingest(context.Background(), c.id, msg)
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			return StreamReply{Error: vErr.Error()}
		}
		c.api.logger.Error(fmt.Sprintf("attempt %s: ingesting stream events: %v", c.id, err), err)
		return StreamReply{Error: http.StatusText(http.StatusInternalServerError)}
	}
	return StreamReply{Outcomes: outcomes}
}

// writePump forwards commands and replies, and pings the page. A closed outbox ends the stream.
func (c *streamClient) writePump(cmds <-chan attempt.Command) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case cmd, ok := <-cmds:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				// attempt closed or server shutting down
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(cmd); err != nil {
				return
			}

		case reply := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteJSON(reply); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// validationMessage renders validator errors the way the HTTP error handler does.
func validationMessage(err error, api *attemptApi) interface{} {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		fldErrs[vErr.Field()] = vErr.Translate(api.translator)
	}
	return fldErrs
}
