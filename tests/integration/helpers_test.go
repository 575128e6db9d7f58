package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"

	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

// envelope is the JSON body every endpoint returns
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details"`
	} `json:"error"`
}

func doJSON(router *gin.Engine, method, path string, payload interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []services.OrderPlacedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, routingKey)
	if event, ok := payload.(services.OrderPlacedEvent); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *recordingPublisher) published() ([]string, []services.OrderPlacedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...), append([]services.OrderPlacedEvent(nil), p.events...)
}
