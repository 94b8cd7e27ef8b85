// Copyright 2025 MediaStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tasks runs the in-process job queue that decouples ingestion from
// the slower post-processing steps. Variant rendering and AI tagging are
// published as messages and consumed by router handlers, so an ingest call
// returns as soon as the original bytes and catalog row are durable.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	log "github.com/sirupsen/logrus"
)

const (
	// TopicVariants carries VariantJob payloads.
	TopicVariants = "assets.variants"
	// TopicTagging carries TaggingJob payloads.
	TopicTagging = "assets.tagging"
)

// VariantJob asks the variant generator to render deliverables for one asset.
type VariantJob struct {
	AssetID int64 `json:"assetId"`
	Force   bool  `json:"force"`
}

// TaggingJob asks the tagger to classify one asset.
type TaggingJob struct {
	AssetID int64 `json:"assetId"`
}

// VariantHandler consumes a VariantJob. A returned error triggers the retry
// middleware before the message is dropped.
type VariantHandler func(ctx context.Context, job VariantJob) error

// TaggingHandler consumes a TaggingJob.
type TaggingHandler func(ctx context.Context, job TaggingJob) error

// Queue is an in-process pub/sub with a router in front of the handlers.
// Publishing is safe from any goroutine once the queue is constructed;
// handlers must be registered before Run is called.
type Queue struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewQueue builds the pub/sub and the router with retry and panic recovery
// middleware. Call Run to start consuming.
func NewQueue() (*Queue, error) {
	logger := NewLoggerAdapter()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 250 * time.Millisecond,
			Multiplier:      2.0,
			Logger:          logger,
		}.Middleware,
	)

	return &Queue{
		pubsub: pubsub,
		router: router,
		logger: logger,
	}, nil
}

// OnVariantJob registers the handler for TopicVariants.
func (q *Queue) OnVariantJob(h VariantHandler) {
	q.router.AddNoPublisherHandler(
		"variant-generator",
		TopicVariants,
		q.pubsub,
		func(msg *message.Message) error {
			var job VariantJob
			if err := json.Unmarshal(msg.Payload, &job); err != nil {
				log.Debugf("[Tasks] Dropping malformed variant job %s: %v", msg.UUID, err)
				return nil
			}
			return h(msg.Context(), job)
		},
	)
}

// OnTaggingJob registers the handler for TopicTagging.
func (q *Queue) OnTaggingJob(h TaggingHandler) {
	q.router.AddNoPublisherHandler(
		"asset-tagger",
		TopicTagging,
		q.pubsub,
		func(msg *message.Message) error {
			var job TaggingJob
			if err := json.Unmarshal(msg.Payload, &job); err != nil {
				log.Debugf("[Tasks] Dropping malformed tagging job %s: %v", msg.UUID, err)
				return nil
			}
			return h(msg.Context(), job)
		},
	)
}

// PublishVariantJob enqueues a variant rendering job.
func (q *Queue) PublishVariantJob(job VariantJob) error {
	return q.publish(TopicVariants, job)
}

// PublishTaggingJob enqueues a tagging job.
func (q *Queue) PublishTaggingJob(job TaggingJob) error {
	return q.publish(TopicTagging, job)
}

func (q *Queue) publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := q.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	log.Debugf("[Tasks] Published %s message %s", topic, msg.UUID)
	return nil
}

// Run starts the router and blocks until ctx is cancelled or the router
// stops. All handlers must be registered before calling Run.
func (q *Queue) Run(ctx context.Context) error {
	return q.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
// Publish before this closes and the message sits in the channel buffer.
func (q *Queue) Running() <-chan struct{} {
	return q.router.Running()
}

// Close shuts the router and the underlying pub/sub down.
func (q *Queue) Close() error {
	if err := q.router.Close(); err != nil {
		return err
	}
	return q.pubsub.Close()
}
