package server

import (
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/runstream/pkg/api"
)

// Hub broadcasts execution updates to every socket. Each socket reads from
// its own consumer, so a slow socket never blocks the others
type Hub struct {
	topic  topic.Topic[*api.ExecutionUpdate]
	prod   topic.Producer[*api.ExecutionUpdate]
	mu     sync.Mutex
	closed bool
}

// NewHub creates an open Hub
func NewHub() *Hub {
	t := caravan.NewTopic[*api.ExecutionUpdate]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Publish sends u to every current consumer. Publishing on a closed Hub is
// a no-op
func (h *Hub) Publish(u *api.ExecutionUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || u == nil {
		return
	}
	message.Send(h.prod, u)
}

// NewConsumer subscribes to updates published from now on
func (h *Hub) NewConsumer() topic.Consumer[*api.ExecutionUpdate] {
	return h.topic.NewConsumer()
}

// Close stops publication
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.prod.Close()
}
