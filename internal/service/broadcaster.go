package service

// Broadcaster interface for realtime fan-out (avoids import cycle with the
// websocket transport; the hub implements it and is injected after
// construction).
type Broadcaster interface {
	BroadcastToRoom(sessionID string, msgType string, payload interface{})
	DisconnectRoom(sessionID string)
}
