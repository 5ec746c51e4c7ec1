package cdp

import "encoding/json"

// Command represents a CDP command sent to the browser
type Command struct {
	ID     int                    `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Response represents a CDP message from the browser. Result stays
// raw because its shape depends on the command; callers unmarshal it
// into the type they expect. Events carry a Method and no ID.
type Response struct {
	ID     int             `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// ResponseError represents an error in a CDP response
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Cookie is a browser cookie as CDP reports it via Storage.getCookies
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix timestamp, seconds; -1 for session cookies
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite"` // "Strict", "Lax", "None" or empty
}
