// Package sse fans task events out to Server-Sent Events subscribers.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event is one message on a topic.
type Event struct {
	Name string
	Data any
}

type Client struct {
	topic string
	ch    chan Event
	done  chan struct{}
}

// Events delivers the client's messages.
func (c *Client) Events() <-chan Event { return c.ch }

// Hub 按 topic（任务 id）分组的订阅者集合，发送不阻塞：缓冲满时丢弃
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*Client]struct{}
	interval time.Duration
	retryMs  int
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{topics: make(map[string]map[*Client]struct{}), interval: interval, retryMs: 5000}
}

func (h *Hub) Subscribe(topic string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{topic: topic, ch: make(chan Event, 16), done: make(chan struct{})}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	return c
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	close(c.done)
	if len(subs) == 0 {
		delete(h.topics, c.topic)
	}
}

// Publish sends ev to every subscriber of topic.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		select {
		case c.ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of clients listening on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve streams events of topic to the request. initial is written first. The stream
// ends when the client disconnects or final reports true for a written event.
func (h *Hub) Serve(c *gin.Context, topic string, initial *Event, final func(Event) bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	client := h.Subscribe(topic)
	defer h.Unsubscribe(client)

	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	if initial != nil {
		writeEvent(c.Writer, *initial)
		flusher.Flush()
		if final != nil && final(*initial) {
			return
		}
	}

	ping := time.NewTicker(h.interval)
	defer ping.Stop()
	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case ev := <-client.ch:
			writeEvent(c.Writer, ev)
			flusher.Flush()
			if final != nil && final(ev) {
				return
			}
		}
	}
}

func writeEvent(w gin.ResponseWriter, ev Event) {
	b, _ := json.Marshal(ev.Data)
	if ev.Name != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}
