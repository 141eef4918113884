package handlers

import "retail-demand-engine/websocket"

// FrameHandler adalah interface dasar untuk semua handler pesan feed
type FrameHandler interface {
	// HandleFrame memproses satu frame JSON dari feed POS
	HandleFrame(frame *websocket.Frame) error

	// GetFrameType mengembalikan tipe frame yang di-handle
	GetFrameType() string
}
