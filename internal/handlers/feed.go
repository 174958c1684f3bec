package handlers

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"moments/internal/models"
	"moments/internal/utils"
)

const (
	feedBuffer    = 16 // events queued per subscriber before it counts as too slow
	feedWriteWait = 10 * time.Second
)

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

type closer interface {
	Close() error
}

// subscriber owns one connection; only its writer goroutine writes to it.
type subscriber struct {
	conn utils.JSONWriter
	send chan models.FeedEvent
	quit chan struct{}
	done chan struct{}
}

// FeedHub fans album events out to live feed subscribers.
type FeedHub struct {
	// connectionID -> subscriber
	subs map[string]*subscriber
	mu   sync.Mutex
	log  *logrus.Logger

	// WriteWait bounds a single write to a subscriber
	WriteWait time.Duration
}

func NewFeedHub(log *logrus.Logger) *FeedHub {
	return &FeedHub{
		subs:      make(map[string]*subscriber),
		log:       log,
		WriteWait: feedWriteWait,
	}
}

// Register stores a subscriber, queues its greeting and starts its writer.
// The returned channel is closed once the writer is done with conn.
func (h *FeedHub) Register(connID string, conn utils.JSONWriter) <-chan struct{} {
	sub := &subscriber{
		conn: conn,
		send: make(chan models.FeedEvent, feedBuffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	sub.send <- models.FeedEvent{Event: "connected", Message: "Subscribed to new public albums"}

	h.mu.Lock()
	if old, ok := h.subs[connID]; ok {
		h.remove(connID, old)
	}
	h.subs[connID] = sub
	h.mu.Unlock()

	go h.writeLoop(connID, sub)
	return sub.done
}

func (h *FeedHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[connID]; ok {
		h.remove(connID, sub)
	}
}

// Count returns the number of live subscribers
func (h *FeedHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// PublishAlbum is called after a public album is committed. It never waits
// on a subscriber.
func (h *FeedHub) PublishAlbum(album models.Album) {
	h.Broadcast(models.FeedEvent{
		Event:   "album_created",
		Owner:   album.OwnerName,
		Name:    album.Name,
		URL:     album.URL(),
		Created: models.FormatTimestamp(album.CreatedAt),
	})
}

// Broadcast queues event for every subscriber. A subscriber whose queue is
// full is disconnected.
func (h *FeedHub) Broadcast(event models.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		select {
		case sub.send <- event:
		default:
			h.log.WithField("conn", id).Warn("feed subscriber too slow, disconnecting")
			h.remove(id, sub)
		}
	}
}

// remove must be called with mu held
func (h *FeedHub) remove(connID string, sub *subscriber) {
	delete(h.subs, connID)
	close(sub.quit)
}

func (h *FeedHub) writeLoop(connID string, sub *subscriber) {
	defer close(sub.done)
	// ends the read loop when the hub gave up on this connection
	defer closeConn(sub.conn)

	for {
		select {
		case <-sub.quit:
			return
		case event := <-sub.send:
			if d, ok := sub.conn.(deadlineWriter); ok {
				_ = d.SetWriteDeadline(time.Now().Add(h.WriteWait))
			}
			if err := utils.SendJSON(sub.conn, event); err != nil {
				h.log.WithError(err).WithField("conn", connID).Warn("feed write failed, disconnecting")
				h.drop(connID, sub)
				return
			}
		}
	}
}

// drop removes sub unless it was already removed or replaced
func (h *FeedHub) drop(connID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[connID] == sub {
		h.remove(connID, sub)
	}
}

func closeConn(conn utils.JSONWriter) {
	if c, ok := conn.(closer); ok {
		_ = c.Close()
	}
}
