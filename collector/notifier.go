package collector

import (
	"context"
	"sync"
)

// Notifier fans out collected items to subscribers without blocking the producer
type Notifier[T any] struct {
	mu sync.RWMutex
	// subscribers holds the channels for each subscriber while allowing to find a subscribe by its read channel
	subscribers map[<-chan T]chan T
	bufferSize  int
	notifyCh    chan T
	done        chan struct{}
	closeOnce   sync.Once
	closed      bool
}

// NotifierOptions configures a notifier
type NotifierOptions struct {
	// SubscriberBufferSize is the buffer size for each subscriber channel
	SubscriberBufferSize int

	// NotificationBufferSize is the buffer size for the internal notification channel
	NotificationBufferSize int
}

// DefaultNotifierOptions returns default options for a notifier
func DefaultNotifierOptions() NotifierOptions {
	return NotifierOptions{
		SubscriberBufferSize:   100,
		NotificationBufferSize: 1000,
	}
}

// NewNotifier creates a new notifier with default options
func NewNotifier[T any]() *Notifier[T] {
	return NewNotifierWithOptions[T](DefaultNotifierOptions())
}

// NewNotifierWithOptions creates a new notifier with specified options
func NewNotifierWithOptions[T any](options NotifierOptions) *Notifier[T] {
	n := &Notifier[T]{
		subscribers: make(map[<-chan T]chan T),
		bufferSize:  options.SubscriberBufferSize,
		notifyCh:    make(chan T, options.NotificationBufferSize),
		done:        make(chan struct{}),
	}

	// Start background goroutine to handle notifications
	go n.processNotifications()

	return n
}

// Subscribe returns a channel that receives notifications
// The context is used to automatically unsubscribe when done
func (n *Notifier[T]) Subscribe(ctx context.Context) <-chan T {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		// Return a closed channel if the notifier is already closed
		ch := make(chan T)
		close(ch)
		return ch
	}
	ch := make(chan T, n.bufferSize)
	n.subscribers[ch] = ch
	n.mu.Unlock()

	// Auto-unsubscribe when context is done
	go func() {
		<-ctx.Done()
		n.Unsubscribe(ch)
	}()

	return ch
}

// Unsubscribe removes a subscription
func (n *Notifier[T]) Unsubscribe(ch <-chan T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Convert to writeable channel to find in map
	if realCh, exists := n.subscribers[ch]; exists {
		delete(n.subscribers, ch)
		close(realCh)
	}
}

// Notify sends a notification to all subscribers
// This is non-blocking - if the internal channel is full, the notification is dropped
func (n *Notifier[T]) Notify(item T) {
	// The read lock keeps Close from closing notifyCh during the send
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.notifyCh <- item:
	default:
		// Channel full, drop notification
	}
}

// Close stops processing and closes all subscriber channels.
// Pending notifications are delivered before subscribers are closed.
func (n *Notifier[T]) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.notifyCh)
		n.mu.Unlock()

		<-n.done

		n.mu.Lock()
		for _, ch := range n.subscribers {
			close(ch)
		}
		n.subscribers = nil
		n.mu.Unlock()
	})
}

// processNotifications handles distributing notifications to subscribers
func (n *Notifier[T]) processNotifications() {
	defer close(n.done)

	for item := range n.notifyCh {
		// Sends never block, so holding the read lock keeps Unsubscribe from
		// closing a channel while it is written to.
		n.mu.RLock()
		for _, ch := range n.subscribers {
			select {
			case ch <- item:
			default:
				// Subscriber channel is full, drop this notification for this subscriber
			}
		}
		n.mu.RUnlock()
	}
}
