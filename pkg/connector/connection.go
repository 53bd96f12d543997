package connector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

// Connection is a producer-side client of a gifenc recording server.
// It pushes timestamped RGBA frames over the session's websocket.
type Connection struct {
	ws *websocket.Conn
}

// CreateSession asks the server for a new recording session and returns
// its id. serverURL is the plain HTTP base URL, e.g. http://host:8080.
func CreateSession(serverURL string, width, height, quality int) (string, error) {
	resp, err := http.Get(fmt.Sprintf("%s/new?w=%d&h=%d&quality=%d", serverURL, width, height, quality))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connector: server returned %s", resp.Status)
	}
	id, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(id), nil
}

// NewConnection dials the websocket of an existing recording session.
func NewConnection(serverURL, sessionID string) (*Connection, error) {
	wsURL := strings.NewReplacer("http://", "ws://", "https://", "wss://").Replace(serverURL) + "/ws/" + sessionID
	ws, err := websocket.Dial(wsURL, "", serverURL)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return &Connection{ws: ws}, nil
}

// PushRGBA sends one frame: width*height*4 RGBA bytes displayed from the
// given timestamp (seconds).
func (conn *Connection) PushRGBA(pixels []byte, timestamp float64) error {
	msg := make([]byte, 8+len(pixels))
	binary.LittleEndian.PutUint64(msg[:8], math.Float64bits(timestamp))
	copy(msg[8:], pixels)
	return websocket.Message.Send(conn.ws, msg)
}

// Close ends the recording; the server finalizes the GIF.
func (conn *Connection) Close() error {
	return conn.ws.Close()
}
