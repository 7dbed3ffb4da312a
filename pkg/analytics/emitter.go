package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/clinsim/platform/pkg/common/logger"
	"github.com/clinsim/platform/pkg/common/models"
)

// Sink is where events ultimately land (kafka in production). Sink errors
// are logged and swallowed; the simulation never waits on analytics.
type Sink interface {
	Publish(ctx context.Context, event models.AnalyticsEvent) error
	Close() error
}

// Emitter decouples the ordering engine from the sink with a buffered
// channel and a single worker goroutine. Record never blocks: when the
// buffer is full the event is dropped with a warning.
type Emitter struct {
	sink      Sink
	events    chan models.AnalyticsEvent
	closeOnce sync.Once
	done      chan struct{}
}

func NewEmitter(sink Sink, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	e := &Emitter{
		sink:   sink,
		events: make(chan models.AnalyticsEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) Record(event models.AnalyticsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case e.events <- event:
	default:
		logger.Log.WithFields(map[string]interface{}{
			"event_type": event.Type,
			"session_id": event.SessionID,
		}).Warn("analytics buffer full, dropping event")
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.sink.Publish(ctx, event); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("failed to publish analytics event")
		}
		cancel()
	}
}

// Close drains buffered events, then closes the sink.
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		close(e.events)
	})
	<-e.done
	return e.sink.Close()
}

// LogSink is the fallback when no kafka brokers are configured: events go
// to the structured log only.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, event models.AnalyticsEvent) error {
	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"session_id": event.SessionID,
		"context":    event.Context,
	}).Info("analytics event")
	return nil
}

func (LogSink) Close() error { return nil }
