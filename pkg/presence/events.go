package presence

import (
	"log/slog"
	"sync"

	"github.com/arzzra/ims_phone/pkg/presence/pidf"
)

// Event событие сервиса presence
type Event interface {
	Kind() string
}

// ResourceStateChanged состояние ресурса в списке RLS (RLMI)
type ResourceStateChanged struct {
	List     string
	Resource pidf.Resource
}

// Kind реализует Event
func (ResourceStateChanged) Kind() string { return "resource" }

// PresenceInfoChanged новый документ presence контакта
type PresenceInfoChanged struct {
	Contact  string
	Document *pidf.Document
}

// Kind реализует Event
func (PresenceInfoChanged) Kind() string { return "presence" }

// WatcherChanged изменение наблюдателя своего presence
type WatcherChanged struct {
	Resource string
	Watcher  pidf.Watcher
}

// Kind реализует Event
func (WatcherChanged) Kind() string { return "watcher" }

// DefaultEventBuffer размер буфера канала слушателя
const DefaultEventBuffer = 64

// Dispatcher раздает события слушателям.
// Каждый слушатель получает свой буферизованный канал, события
// рассылаются в порядке регистрации слушателей. Если буфер слушателя
// заполнен, событие для него отбрасывается.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []chan Event
	buffer    int
	closed    bool
	logger    *slog.Logger
}

// NewDispatcher создает диспетчер
func NewDispatcher(buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{buffer: buffer, logger: logger}
}

// Subscribe регистрирует слушателя. Канал закрывается в Close.
func (d *Dispatcher) Subscribe() <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Event, d.buffer)
	if d.closed {
		close(ch)
		return ch
	}
	d.listeners = append(d.listeners, ch)
	return ch
}

// Publish рассылает событие без блокировки
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for i, ch := range d.listeners {
		select {
		case ch <- ev:
		default:
			d.logger.Warn("listener buffer full, event dropped",
				slog.Int("listener", i),
				slog.String("kind", ev.Kind()))
		}
	}
}

// Close закрывает каналы всех слушателей
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.listeners {
		close(ch)
	}
	d.listeners = nil
}
