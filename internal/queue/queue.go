package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/dispatch"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte) error) error
}

// InMemoryQueue dispatches published payloads to subscribers in-process,
// retrying failed handlers with backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte) error
	log      *zap.Logger
}

func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload []byte) error),
		log:      log,
	}
}

const maxRetries = 3

func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, payload)
	}
	return nil
}

func (q *InMemoryQueue) processJob(topic string, handler func(payload []byte) error, payload []byte) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := handler(payload)
		if err == nil {
			return
		}
		q.log.Warn("job failed",
			zap.String("topic", topic),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt == maxRetries {
			q.log.Error("job permanently failed", zap.String("topic", topic))
			return
		}
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// DispatchJob asks a worker to run one campaign's dispatch.
type DispatchJob struct {
	CampaignID int `json:"campaign_id"`
}

// Launcher publishes dispatch jobs instead of running dispatch in-process.
// Implements service.DispatchLauncher for deployments with a separate worker.
type Launcher struct {
	Queue Queue
	Topic string
	Log   *zap.Logger
}

func (l *Launcher) Launch(campaignID int) {
	body, err := json.Marshal(DispatchJob{CampaignID: campaignID})
	if err != nil {
		l.Log.Error("failed to encode dispatch job", zap.Error(err))
		return
	}
	if err := l.Queue.Publish(l.Topic, body); err != nil {
		l.Log.Error("failed to enqueue dispatch job",
			zap.Int("campaign_id", campaignID), zap.Error(err))
	}
}

// StartDispatchSubscriber runs a dispatch run for every job on the topic.
func StartDispatchSubscriber(q Queue, topic string, d *dispatch.Dispatcher, log *zap.Logger) error {
	return q.Subscribe(topic, func(payload []byte) error {
		var job DispatchJob
		if err := json.Unmarshal(payload, &job); err != nil {
			log.Warn("invalid dispatch job payload", zap.Error(err))
			return nil // malformed jobs are not retried
		}
		log.Info("processing dispatch job", zap.Int("campaign_id", job.CampaignID))
		return d.Run(context.Background(), job.CampaignID)
	})
}
