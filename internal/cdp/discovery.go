package cdp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetWebSocketURL discovers the browser-level WebSocket URL by
// querying the debug port's /json/version endpoint
func GetWebSocketURL(host string, debugPort string) (string, error) {
	if host == "" {
		host = "localhost"
	}

	url := fmt.Sprintf("http://%s:%s/json/version", host, debugPort)

	response, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to connect to debug port: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &version); err != nil {
		return "", fmt.Errorf("failed to unmarshal version response: %w", err)
	}

	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no browser WebSocket URL - browser may still be starting")
	}

	return version.WebSocketDebuggerURL, nil
}
