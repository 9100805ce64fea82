package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
)

const (
	streamReadLimit  = 1 << 20
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 25 * time.Second
	streamWriteWait  = 10 * time.Second
)

// Any origin may connect; cross-origin browsers are already allowed by CORS.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamError struct {
	Error string `json:"error"`
}

// PredictStream scores one lead per websocket text message. Every message
// gets exactly one reply; a bad message never closes the connection.
func (h *LeadsHandler) PredictStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.l.Warn("stream upgrade", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	remote := c.RealIP()
	h.l.Info("stream opened", applogger.String("remote", remote))

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	ctx := c.Request().Context()
	scored := 0
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.l.Warn("stream read", applogger.String("remote", remote), applogger.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		if mt != websocket.TextMessage {
			continue
		}

		var reply interface{}
		if pred, err := h.scoreMessage(ctx, msg); err != nil {
			reply = streamError{Error: replyMessage(err)}
		} else {
			reply = pred
			scored++
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.l.Warn("stream write", applogger.String("remote", remote), applogger.Error(err))
			break
		}
	}
	h.l.Info("stream closed", applogger.String("remote", remote), applogger.Int("scored", scored))
	return nil
}

func (h *LeadsHandler) scoreMessage(ctx context.Context, msg []byte) (models.Prediction, error) {
	if !h.scorer.Available() {
		return models.Prediction{}, domsvc.ErrModelUnavailable
	}
	var req models.LeadRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return models.Prediction{}, errors.New("invalid JSON: " + err.Error())
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		return models.Prediction{}, err
	}
	return h.scorer.Score(ctx, req.ToLead(), models.SourceStream)
}

// replyMessage keeps validation replies short: the AppError message without
// the wrapped validator output.
func replyMessage(err error) string {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
