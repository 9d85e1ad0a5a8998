package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a queue and hands each body to a handler.
type SQSConsumer struct {
	client     sqsAPI
	queueURL   string
	logger     *zap.Logger
	retryDelay time.Duration
}

const defaultRetryDelay = 5 * time.Second

func NewSQSConsumer(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:     sqs.NewFromConfig(cfg),
		queueURL:   queueURL,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
}

// MessageHandler processes one message body. Returning an error leaves the
// message on the queue for redelivery after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling runs until ctx is cancelled. A failed receive waits
// retryDelay before the next attempt.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("starting SQS polling", zap.String("queue_url", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped", zap.String("queue_url", c.queueURL))
			return ctx.Err()
		default:
		}

		err := c.PollOnce(ctx, handler)
		if err == nil || ctx.Err() != nil {
			continue
		}
		c.logger.Error("error polling SQS", zap.Error(err), zap.Duration("retry_in", c.retryDelay))
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
		}
	}
}

// PollOnce receives one batch and deletes every message the handler accepted.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, UnwrapSNSEnvelope(*msg.Body)); err != nil {
			c.logger.Warn("failed to process message", zap.Stringp("message_id", msg.MessageId), zap.Error(err))
			continue
		}
		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Error("failed to delete message", zap.Stringp("message_id", msg.MessageId), zap.Error(err))
		}
	}
	return nil
}

// UnwrapSNSEnvelope returns the inner message when body is an SNS
// notification delivered to SQS without raw message delivery.
func UnwrapSNSEnvelope(body string) string {
	var envelope struct {
		Type    string `json:"Type"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return body
}
