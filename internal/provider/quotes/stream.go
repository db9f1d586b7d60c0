package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

const (
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 2 * time.Minute

	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Stream pushes live quote updates over the provider's websocket feed.
// Each tick is emitted as a single-record RawPayload so downstream code
// treats pushed and polled quotes identically.
type Stream struct {
	logger  *logger.Logger
	wsURL   string
	apiKey  string
	ttl     time.Duration
	updates chan *provider.RawPayload

	conn   *websocket.Conn
	connMu sync.RWMutex

	symbols   map[string]bool
	symbolsMu sync.RWMutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStream creates a quote stream client.
func NewStream(cfg config.ProviderConfig, log *logger.Logger) *Stream {
	wsURL := strings.Replace(cfg.BaseURL, "https://", "wss://", 1) + "/v1/stream"

	return &Stream{
		logger:  log,
		wsURL:   wsURL,
		apiKey:  cfg.APIKey,
		ttl:     cfg.TTL,
		updates: make(chan *provider.RawPayload, 256),
		symbols: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Updates returns the channel of pushed quote payloads.
func (s *Stream) Updates() <-chan *provider.RawPayload {
	return s.updates
}

// Start connects and begins reading. Reconnects with backoff until Stop.
func (s *Stream) Start(ctx context.Context, symbols []string) error {
	s.symbolsMu.Lock()
	for _, sym := range symbols {
		s.symbols[strings.ToUpper(sym)] = true
	}
	s.symbolsMu.Unlock()

	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go s.readLoop(ctx)
	go s.pingLoop()

	return nil
}

// Stop closes the connection and drains the reader.
func (s *Stream) Stop() {
	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	<-s.doneCh
}

// Subscribe adds symbols to the live subscription.
func (s *Stream) Subscribe(symbols []string) error {
	s.symbolsMu.Lock()
	for _, sym := range symbols {
		s.symbols[strings.ToUpper(sym)] = true
	}
	s.symbolsMu.Unlock()

	return s.sendSubscribe()
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", s.wsURL, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.logger.WithField("url", s.wsURL).Info("Quote stream connected")

	return s.sendSubscribe()
}

// subscribeMessage is the feed's subscription frame.
type subscribeMessage struct {
	Action  string   `json:"action"`
	APIKey  string   `json:"apikey"`
	Symbols []string `json:"symbols"`
}

func (s *Stream) sendSubscribe() error {
	s.symbolsMu.RLock()
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.symbolsMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(subscribeMessage{
		Action:  "subscribe",
		APIKey:  s.apiKey,
		Symbols: symbols,
	})
}

// readLoop reads tick frames and emits raw payloads, reconnecting with
// backoff on broken connections.
func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.doneCh)

	delay := reconnectDelay

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}

			s.logger.WithError(err).Warn("Quote stream read failed, reconnecting")
			if err := s.connect(ctx); err != nil {
				s.logger.WithError(err).Warn("Quote stream reconnect failed")
				continue
			}
			delay = reconnectDelay
			continue
		}

		s.handleMessage(data)
	}
}

func (s *Stream) handleMessage(data []byte) {
	var tick map[string]interface{}
	if err := json.Unmarshal(data, &tick); err != nil {
		s.logger.WithError(err).Debug("Dropping malformed stream frame")
		return
	}

	symbol, _ := tick["symbol"].(string)
	if symbol == "" {
		return
	}

	payload := &provider.RawPayload{
		Class:       domain.ClassQuotes,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         s.ttl,
		Records: []provider.RawRecord{
			{Symbol: strings.ToUpper(symbol), Fields: tick},
		},
	}

	// Drop ticks rather than block the reader when the consumer lags.
	select {
	case s.updates <- payload:
	default:
		s.logger.WithField("symbol", symbol).Debug("Quote update dropped, consumer lagging")
	}
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()
			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.WithError(err).Debug("Quote stream ping failed")
			}
		}
	}
}
