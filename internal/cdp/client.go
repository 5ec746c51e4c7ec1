package cdp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// commandTimeout bounds how long a single CDP command may take
const commandTimeout = 10 * time.Second

// Client is a browser-level CDP connection. One client serves all the
// browser contexts on a single browser process; commands multiplex
// over the WebSocket by id.
type Client struct {
	wsURL string
	conn  *websocket.Conn

	writeMu sync.Mutex // WebSocket writes are not concurrency-safe
	nextID  int

	pendingMu sync.Mutex
	pending   map[int]chan *Response

	closed chan struct{}
}

// NewClient creates a client for the given WebSocket URL. Call
// Connect before sending commands.
func NewClient(wsURL string) *Client {
	return &Client{
		wsURL:   wsURL,
		pending: make(map[int]chan *Response),
		closed:  make(chan struct{}),
	}
}

// Connect dials the browser and starts the read loop
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial browser WebSocket: %w", err)
	}

	c.conn = conn
	go c.readLoop()

	slog.Debug("CDP client connected", "url", c.wsURL)
	return nil
}

// readLoop routes incoming messages to the callers waiting on them.
// Unsolicited events carry no id and are dropped; this client only
// issues request/response commands.
func (c *Client) readLoop() {
	for {
		var response Response
		if err := c.conn.ReadJSON(&response); err != nil {
			c.failPending(err)
			return
		}

		if response.Method != "" {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[response.ID]
		if ok {
			delete(c.pending, response.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- &response
		}
	}
}

// failPending unblocks every caller waiting on a response after the
// connection dies
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}

	select {
	case <-c.closed:
		// Close was requested; quiet shutdown
	default:
		slog.Warn("CDP connection lost", "error", err)
	}
}

// SendCommand issues one CDP command and waits for its response
func (c *Client) SendCommand(method string, params map[string]interface{}) (json.RawMessage, error) {
	ch := make(chan *Response, 1)

	c.writeMu.Lock()
	c.nextID++
	id := c.nextID

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	err := c.conn.WriteJSON(Command{
		ID:     id,
		Method: method,
		Params: params,
	})
	c.writeMu.Unlock()

	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case response, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection closed while waiting for %s", method)
		}
		if response.Error != nil {
			return nil, fmt.Errorf("%s failed: %s (code %d)", method, response.Error.Message, response.Error.Code)
		}
		return response.Result, nil

	case <-time.After(commandTimeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("timed out waiting for %s", method)
	}
}

// CreateBrowserContext creates an isolated browsing context
// (separate cookies, cache and storage from every other context)
func (c *Client) CreateBrowserContext() (string, error) {
	result, err := c.SendCommand("Target.createBrowserContext", nil)
	if err != nil {
		return "", err
	}

	var response struct {
		BrowserContextID string `json:"browserContextId"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", fmt.Errorf("failed to parse createBrowserContext response: %w", err)
	}

	return response.BrowserContextID, nil
}

// DisposeBrowserContext destroys a context and every page in it
func (c *Client) DisposeBrowserContext(contextID string) error {
	_, err := c.SendCommand("Target.disposeBrowserContext", map[string]interface{}{
		"browserContextId": contextID,
	})
	return err
}

// CreateTarget opens a page at the given URL inside a context
func (c *Client) CreateTarget(url string, contextID string) (string, error) {
	result, err := c.SendCommand("Target.createTarget", map[string]interface{}{
		"url":              url,
		"browserContextId": contextID,
	})
	if err != nil {
		return "", err
	}

	var response struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", fmt.Errorf("failed to parse createTarget response: %w", err)
	}

	return response.TargetID, nil
}

// CloseTarget closes a page
func (c *Client) CloseTarget(targetID string) error {
	_, err := c.SendCommand("Target.closeTarget", map[string]interface{}{
		"targetId": targetID,
	})
	return err
}

// GetCookies reads all cookies visible to a browser context
func (c *Client) GetCookies(contextID string) ([]Cookie, error) {
	result, err := c.SendCommand("Storage.getCookies", map[string]interface{}{
		"browserContextId": contextID,
	})
	if err != nil {
		return nil, err
	}

	var response struct {
		Cookies []Cookie `json:"cookies"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return nil, fmt.Errorf("failed to parse getCookies response: %w", err)
	}

	return response.Cookies, nil
}

// Close shuts the connection down
func (c *Client) Close() error {
	close(c.closed)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
