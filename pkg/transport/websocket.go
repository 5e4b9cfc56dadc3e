package transport

import (
	"io"

	"golang.org/x/net/websocket"
)

// WebSocket implements PacketReadWriter, a packet per binary message.
type WebSocket websocket.Conn

// NewWebSocket wraps websocket.Conn.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return (*WebSocket)(conn)
}

// ReadPacket implements PacketReader.
func (p *WebSocket) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *WebSocket) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *WebSocket) Close() error {
	return (*websocket.Conn)(p).Close()
}

// DialWebSocket connects a ws:// or wss:// URL.
func DialWebSocket(url, origin string) (io.ReadWriteCloser, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return NewStream(NewWebSocket(conn), nil), nil
}

// WebSocketHandler serves each websocket connection as a stream.
func WebSocketHandler(serve func(io.ReadWriteCloser)) websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		serve(NewStream(NewWebSocket(conn), nil))
	}
}
