package utils

// JSONWriter is satisfied by *websocket.Conn
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// SendJSON sends a JSON payload to a WebSocket connection.
// Fiber's websocket implementation is not safe for concurrent writes, the
// caller must serialize writes to the same connection.
func SendJSON(c JSONWriter, payload interface{}) error {
	return c.WriteJSON(payload)
}
