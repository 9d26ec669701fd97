package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/poller"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

const (
	// Время ожидания для write операций
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал ping сообщений (должен быть меньше pongWait)
	pingPeriod = 54 * time.Second

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	answerTimeout = 15 * time.Second
)

// Типы сообщений клиент → сервер
const (
	ClientMessageSelect = "select"
	ClientMessageAnswer = "answer"
	ClientMessageClear  = "clear"
)

// ClientMessage — команда от браузера
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

// Client представляет WebSocket клиента с собственной подпиской на сессию
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	sendMu sync.Mutex
	send   chan Message
	closed bool

	mu         sync.Mutex
	sessionID  string
	credential string

	poller *poller.SessionPoller
	logger *logger.Logger
}

// NewClient создает нового WebSocket клиента
func NewClient(hub *Hub, conn *websocket.Conn, logger *logger.Logger) *Client {
	c := &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, 256),
		logger: logger,
	}
	c.poller = hub.newPoller(c.onState)
	return c
}

// Start запускает pumps; непустой sessionID сразу оформляет подписку
// (пустой credential заменяется ключом по умолчанию).
func (c *Client) Start(sessionID, credential string) {
	go c.WritePump()
	go c.ReadPump()

	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		c.handle(ClientMessage{Type: ClientMessageSelect, SessionID: sessionID, APIKey: credential})
	}
}

// ReadPump читает команды клиента
// Запускается в отдельной goroutine
func (c *Client) ReadPump() {
	defer func() {
		c.poller.Close()
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("WebSocket close error", "error", err.Error())
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("WebSocket set read deadline error", err)
		return
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handle(msg)
	}
}

// WritePump отправляет сообщения клиенту
// Запускается в отдельной goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("WebSocket close error", "error", err.Error())
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("WebSocket set write deadline error", err)
				return
			}
			if !ok {
				// Hub закрыл канал
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("WebSocket write error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("WebSocket set write deadline error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case ClientMessageSelect:
		credential := strings.TrimSpace(msg.APIKey)
		if credential == "" {
			credential = c.hub.config.DefaultCredential
		}
		c.selectSession(strings.TrimSpace(msg.SessionID), credential)

	case ClientMessageClear:
		c.selectSession("", "")

	case ClientMessageAnswer:
		sessionID, credential := c.selection()
		if sessionID == "" {
			c.sendError("no session selected")
			return
		}
		go c.submitAnswer(sessionID, credential, msg.Answer)

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) selectSession(sessionID, credential string) {
	c.mu.Lock()
	c.sessionID, c.credential = sessionID, credential
	c.mu.Unlock()

	c.poller.Select(sessionID, credential)
}

func (c *Client) selection() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.credential
}

// submitAnswer отправляет ответ и подставляет полученный snapshot в poller,
// если клиент не переключился на другую сессию.
func (c *Client) submitAnswer(sessionID, credential, answer string) {
	answers := c.hub.answerSubmitter()
	if answers == nil {
		c.sendError("answers are not supported")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	result, err := answers.Execute(ctx, sessionID, credential, answer)
	if err != nil {
		c.logger.Warn("Failed to submit answer", "session_id", sessionID, "error", err.Error())
		c.sendError(err.Error())
		return
	}

	c.poller.ReplaceSnapshot(func(current *entity.SessionEnvelope) *entity.SessionEnvelope {
		if active, _ := c.selection(); active != sessionID {
			return nil
		}
		return result.Session
	})
}

// onState — listener poller'а: вызывается по порядку изменений, не блокирует
func (c *Client) onState(state poller.State) {
	update := &dto.SessionUpdateDTO{
		Generation: state.Generation,
		SessionID:  state.SessionID,
		Session:    state.Snapshot,
		Verdict:    c.hub.reconcile(state.Snapshot),
		Polling:    state.Polling,
		Timestamp:  time.Now().UTC(),
	}
	if state.HasError() {
		message := state.Error
		update.Error = &message
	}

	if !c.enqueue(Message{Type: MessageTypeSession, Data: update}) {
		c.logger.Warn("Client channel full, dropping session update", "session_id", state.SessionID)
	}

	if state.Terminal && state.Snapshot != nil {
		c.hub.finalize(state.Snapshot)
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(Message{Type: MessageTypeError, Data: ErrorPayload{Message: message}})
}

// enqueue не блокируется; false, если канал закрыт или заполнен
func (c *Client) enqueue(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
