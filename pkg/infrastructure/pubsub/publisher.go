package pubsub

import (
	"context"
	"log"

	"cloud.google.com/go/pubsub"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub
type PubSubAdapter struct {
	Client *pubsub.Client
}

func (a *PubSubAdapter) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	return res.Get(ctx)
}

func (a *PubSubAdapter) PublishWithAttrs(ctx context.Context, topicID string, data []byte, attrs map[string]string) (string, error) {
	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return res.Get(ctx)
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct{}

func (p *LogPublisher) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	log.Printf("[LogPublisher] MOCK PUBLISH to %s: %s", topicID, string(data))
	return "mock-msg-id", nil
}

func (p *LogPublisher) PublishWithAttrs(ctx context.Context, topicID string, data []byte, attrs map[string]string) (string, error) {
	log.Printf("[LogPublisher] MOCK PUBLISH to %s (attrs %v): %s", topicID, attrs, string(data))
	return "mock-msg-id", nil
}
