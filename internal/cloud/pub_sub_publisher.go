// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// EventTypeAttribute is the message attribute carrying the event type.
const EventTypeAttribute = "event_type"

// PubSubEventPublisher publishes JSON events to one topic.
type PubSubEventPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubEventPublisher returns a publisher for topicID.
func NewPubSubEventPublisher(client *pubsub.Client, topicID string) *PubSubEventPublisher {
	return &PubSubEventPublisher{topic: client.Topic(topicID)}
}

// Publish encodes event as JSON and waits for the server to accept it.
func (p *PubSubEventPublisher) Publish(ctx context.Context, eventType string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{EventTypeAttribute: eventType},
	})
	if _, err = result.Get(ctx); err != nil {
		return fmt.Errorf("publishing %s event: %w", eventType, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubEventPublisher) Stop() {
	p.topic.Stop()
}
