package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/schema"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	reconnectGap = 5 * time.Second
)

// StreamConfig points the tick consumer at the venue feed.
type StreamConfig struct {
	URL string
}

// Stream consumes the venue's tick websocket and publishes normalized
// ticks onto the bus. It reconnects with a fixed pause until the
// context or process shutdown ends it.
type Stream struct {
	cfg      StreamConfig
	registry *schema.Registry
	queue    *bus.Queue
}

// NewStream creates a tick stream bound to a registry and tick queue.
func NewStream(cfg StreamConfig, registry *schema.Registry, queue *bus.Queue) *Stream {
	return &Stream{cfg: cfg, registry: registry, queue: queue}
}

// Run blocks, maintaining the connection until shutdown.
func (s *Stream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sys.Shutdown():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
		if err != nil {
			logs.Errorf("tick stream dial %s, err: %+v", s.cfg.URL, err)
			s.pause(ctx)
			continue
		}

		logs.Infof("tick stream connected: %s", s.cfg.URL)
		if err := s.consume(ctx, conn); err != nil {
			logs.Warnf("tick stream dropped, err: %+v", err)
		}
		_ = conn.Close()
		s.pause(ctx)
	}
}

func (s *Stream) consume(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sys.Shutdown():
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read tick message")
		}
		tick, ok := s.parse(message)
		if !ok {
			continue
		}
		if err := s.queue.TryPublish(tick); err != nil {
			// Queue pressure is counted on the queue side; the next
			// update for the instrument carries fresher state anyway.
			continue
		}
	}
}

type tickPayload struct {
	Token     uint32          `json:"token"`
	LastPrice decimal.Decimal `json:"ltp"`
	TsEvent   int64           `json:"ts"`
}

func (s *Stream) parse(message []byte) (schema.Tick, bool) {
	var pl tickPayload
	if err := json.Unmarshal(message, &pl); err != nil {
		logs.Errorf("unmarshal tick payload, err: %+v", err)
		return schema.Tick{}, false
	}
	token := schema.InstrumentToken(pl.Token)
	inst, ok := s.registry.Instrument(token)
	if !ok {
		return schema.Tick{}, false
	}
	price, err := schema.ParsePrice(pl.LastPrice.String(), inst.Scale.PriceScale)
	if err != nil {
		logs.Errorf("parse tick price %s, err: %+v", pl.LastPrice.String(), err)
		return schema.Tick{}, false
	}
	return schema.Tick{
		Token:     token,
		LastPrice: price,
		TsEvent:   pl.TsEvent,
		TsRecv:    time.Now().UnixNano(),
	}, true
}

func (s *Stream) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-sys.Shutdown():
	case <-time.After(reconnectGap):
	}
}
