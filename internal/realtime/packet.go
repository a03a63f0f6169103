package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types, the first byte of every websocket frame.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
)

// Socket.IO v5 packet types, carried inside engine message packets.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
)

var errEmptyFrame = errors.New("realtime: empty frame")

// openPayload is the handshake the server sends in its open packet.
type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// frame is one decoded websocket frame.
type frame struct {
	engine    byte
	socket    byte // only set for engine message packets
	namespace string
	ackID     int // -1 when absent
	data      json.RawMessage
}

// event returns the event name and first argument of a socket event packet.
func (f frame) event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(f.data, &args); err != nil {
		return "", nil, fmt.Errorf("realtime: malformed event payload: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("realtime: event without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("realtime: event name is not a string: %w", err)
	}
	var payload json.RawMessage
	if len(args) > 1 {
		payload = args[1]
	}
	return name, payload, nil
}

func decodeFrame(msg []byte) (frame, error) {
	if len(msg) == 0 {
		return frame{}, errEmptyFrame
	}
	f := frame{engine: msg[0], ackID: -1}
	rest := msg[1:]
	if f.engine != engineMessage {
		f.data = rest
		return f, nil
	}
	if len(rest) == 0 {
		return frame{}, errors.New("realtime: message packet without socket type")
	}
	f.socket = rest[0]
	rest = rest[1:]

	// Optional namespace: "/chat," prefix.
	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			f.namespace = string(rest)
			return f, nil
		}
		f.namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	// Optional ack id: leading digits.
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return frame{}, fmt.Errorf("realtime: bad ack id: %w", err)
		}
		f.ackID = id
		rest = rest[i:]
	}
	f.data = rest
	return f, nil
}

func encodeConnect(auth interface{}) ([]byte, error) {
	out := []byte{engineMessage, socketConnect}
	if auth == nil {
		return out, nil
	}
	b, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	return append(out, b...), nil
}

func encodeEvent(event string, args ...interface{}) ([]byte, error) {
	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, event)
	payload = append(payload, args...)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("realtime: failed to encode %s: %w", event, err)
	}
	return append([]byte{engineMessage, socketEvent}, b...), nil
}

func encodeDisconnect() []byte {
	return []byte{engineMessage, socketDisconnect}
}

func encodePong() []byte {
	return []byte{enginePong}
}
