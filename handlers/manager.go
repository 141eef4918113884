package handlers

import (
	"fmt"
	"sync"

	"retail-demand-engine/websocket"
)

// HandlerManager mengelola multiple frame handlers
type HandlerManager struct {
	handlers map[string]FrameHandler
	mu       sync.RWMutex
}

// NewHandlerManager membuat instance HandlerManager baru
func NewHandlerManager() *HandlerManager {
	return &HandlerManager{
		handlers: make(map[string]FrameHandler),
	}
}

// RegisterHandler mendaftarkan handler dengan nama tertentu
func (hm *HandlerManager) RegisterHandler(name string, handler FrameHandler) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.handlers[name] = handler
	fmt.Printf("📦 Registered handler: %s (type: %s)\n", name, handler.GetFrameType())
}

// UnregisterHandler menghapus handler dengan nama tertentu
func (hm *HandlerManager) UnregisterHandler(name string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	delete(hm.handlers, name)
}

// GetHandler mendapatkan handler berdasarkan nama
func (hm *HandlerManager) GetHandler(name string) (FrameHandler, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	handler, exists := hm.handlers[name]
	return handler, exists
}

// HandleFrame memproses frame menggunakan handler yang sesuai
func (hm *HandlerManager) HandleFrame(handlerName string, frame *websocket.Frame) error {
	handler, exists := hm.GetHandler(handlerName)
	if !exists {
		return fmt.Errorf("handler '%s' not found", handlerName)
	}

	return handler.HandleFrame(frame)
}

// ListHandlers mengembalikan daftar nama handler yang terdaftar
func (hm *HandlerManager) ListHandlers() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.handlers))
	for name := range hm.handlers {
		names = append(names, name)
	}
	return names
}
