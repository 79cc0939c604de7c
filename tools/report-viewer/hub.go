package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// AnalysisEvent is the union of the completed and failed analysis events.
type AnalysisEvent struct {
	EventType         string   `json:"eventType"`
	AnalysisID        string   `json:"analysisId"`
	UserID            string   `json:"userId,omitempty"`
	Timestamp         int64    `json:"timestamp"`
	Language          string   `json:"language"`
	ReferenceText     string   `json:"referenceText,omitempty"`
	RecognizedText    string   `json:"recognizedText,omitempty"`
	OverallScore      int      `json:"overallScore"`
	SimilarityScore   int      `json:"similarityScore"`
	IssueTypes        []string `json:"issueTypes,omitempty"`
	RecognitionEngine string   `json:"recognitionEngine,omitempty"`
	DurationMs        int64    `json:"durationMs,omitempty"`
	Degraded          bool     `json:"degraded"`
	Reason            string   `json:"reason,omitempty"`
}

func decodeEvent(value []byte) (AnalysisEvent, error) {
	var ev AnalysisEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	if ev.EventType == "" || ev.AnalysisID == "" {
		return ev, fmt.Errorf("decode event: missing eventType or analysisId")
	}
	return ev, nil
}

// Hub fans events out to every connected browser.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan AnalysisEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan AnalysisEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Info().Int("clients", h.count()).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mu.Unlock()
			log.Info().Int("clients", h.count()).Msg("Client disconnected")

		case ev := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(ev); err != nil {
					log.Warn().Err(err).Msg("Write failed, dropping client")
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	// Local dev tool
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		hub.register <- conn

		go func() {
			defer func() { hub.unregister <- conn }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
