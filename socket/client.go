package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-client/models"
	"chat-client/utils"
)

// Eventi scambiati sul canale
const (
	EventJoinChat     = "join-chat"
	EventLeaveChat    = "leave-chat"
	EventSendMessage  = "send-message"
	EventNewMessage   = "new-message"
	EventMessageError = "message-error"

	// Eventi sintetici di ciclo di vita, notificati agli handler locali
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

var (
	// ErrNotConnected segnala che il canale non è connesso
	ErrNotConnected = errors.New("socket non connesso")
	// ErrConnectInProgress segnala che un tentativo di connessione è già
	// in corso; non ne viene mai avviato più di uno alla volta
	ErrConnectInProgress = errors.New("connessione già in corso")
)

// Handler riceve il payload grezzo di un evento
type Handler func(payload json.RawMessage)

// Client gestisce l'unica connessione websocket condivisa verso il
// backend. La connessione segue la sessione: si apre al login (o
// all'avvio, con la credenziale salvata) e si chiude al logout.
type Client struct {
	url string

	reconnectDelay    time.Duration
	reconnectDelayMax time.Duration
	reconnectAttempts int

	mu         sync.RWMutex
	conn       *websocket.Conn
	token      string
	connected  bool
	connecting bool
	closed     bool
	handlers   map[string]map[int]Handler
	nextID     int

	// Serializza le scritture sul socket
	writeMu sync.Mutex
}

// NewClient crea un nuovo client per il canale di trasporto
func NewClient(url string, cfg utils.SocketConfig) *Client {
	return &Client{
		url:               url,
		reconnectDelay:    time.Duration(cfg.ReconnectDelayMs) * time.Millisecond,
		reconnectDelayMax: time.Duration(cfg.ReconnectDelayMaxMs) * time.Millisecond,
		reconnectAttempts: cfg.ReconnectAttempts,
		handlers:          make(map[string]map[int]Handler),
	}
}

// On registra un handler per un evento e restituisce la funzione per
// rimuoverlo (da chiamare quando si chiude la vista interessata)
func (c *Client) On(event string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = handler

	return func() {
		c.mu.Lock()
		delete(c.handlers[event], id)
		c.mu.Unlock()
	}
}

// Connect apre la connessione con il token di sessione. Un solo
// tentativo di connessione può essere in corso alla volta.
func (c *Client) Connect(token string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.connecting = true
	c.closed = false
	c.token = token
	c.mu.Unlock()

	err := c.dial()

	c.mu.Lock()
	c.connecting = false
	c.mu.Unlock()

	if err != nil {
		utils.Logger.Warnf("Errore di connessione al socket: %v", err)
		c.dispatch(EventConnectError, nil)
		// Anche il primo tentativo fallito entra nel ciclo di
		// riconnessione, come una connessione caduta
		go c.reconnect()
		return fmt.Errorf("errore nella connessione al socket: %v", err)
	}
	return nil
}

// Disconnect chiude la connessione (logout). Non viene tentata alcuna
// riconnessione finché non si richiama Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Connected segnala se il canale è attualmente connesso
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit invia un evento sul canale
func (c *Client) Emit(event string, payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(models.WSMessage{Type: event, Payload: payload})
}

// JoinChat entra nella stanza della conversazione
func (c *Client) JoinChat(chatID string) error {
	return c.Emit(EventJoinChat, chatID)
}

// LeaveChat esce dalla stanza della conversazione
func (c *Client) LeaveChat(chatID string) error {
	return c.Emit(EventLeaveChat, chatID)
}

// SendMessage invia un messaggio sul canale
func (c *Client) SendMessage(msg *models.OutgoingMessage) error {
	return c.Emit(EventSendMessage, msg)
}

func (c *Client) dial() error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	utils.Logger.Infof("Socket connesso a %s", c.url)
	c.dispatch(EventConnect, nil)
	return nil
}

// readLoop legge e smista gli eventi finché la connessione resta in piedi
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var event models.WSEvent
		if err := json.Unmarshal(data, &event); err != nil {
			utils.Logger.Warnf("Evento non valido sul socket: %v", err)
			continue
		}
		c.dispatch(event.Type, event.Payload)
	}

	c.mu.Lock()
	// Un'altra connessione potrebbe essere già subentrata
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	closed := c.closed
	c.mu.Unlock()

	c.dispatch(EventDisconnect, nil)

	if !closed {
		utils.Logger.Warnf("Connessione al socket persa, riconnessione in corso")
		go c.reconnect()
	}
}

// reconnect riprova con backoff esponenziale limitato; esauriti i
// tentativi il canale resta disconnesso fino a una Connect esplicita
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.connected || c.connecting || c.closed {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	delay := c.reconnectDelay
	for attempt := 1; attempt <= c.reconnectAttempts; attempt++ {
		time.Sleep(delay)

		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		if err := c.dial(); err == nil {
			utils.Logger.Infof("Socket riconnesso al tentativo %d", attempt)
			return
		} else {
			utils.Logger.Warnf("Tentativo di riconnessione %d fallito: %v", attempt, err)
			c.dispatch(EventConnectError, nil)
		}

		delay *= 2
		if delay > c.reconnectDelayMax {
			delay = c.reconnectDelayMax
		}
	}

	utils.Logger.Errorf("Riconnessione fallita dopo %d tentativi", c.reconnectAttempts)
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.handlers[event]))
	for _, h := range c.handlers[event] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
