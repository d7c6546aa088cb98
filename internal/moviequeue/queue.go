// Package moviequeue creates movies from messages on an SQS queue. Each
// message body is a {"title", "year"} document; movies are created through
// the HTTP API so subscribers hear about them like any other create.
package moviequeue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/dannyrandall/movies-realtime/internal/client"
	"github.com/dannyrandall/movies-realtime/internal/metrics"
	"github.com/dannyrandall/movies-realtime/internal/movies"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// SQSAPI is the part of *sqs.Client the queue uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Creator creates a movie, normally through *client.Client.
type Creator interface {
	Create(ctx context.Context, in movies.Input) (movies.Movie, error)
}

// Outcomes recorded for each handled message.
const (
	outcomeCreated  = "created"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

type Queue struct {
	SQS    SQSAPI
	Movies Creator
	Tracer trace.Tracer

	QueueName string
	QueueURL  string

	// WaitTimeSeconds is the long-poll duration for each receive.
	WaitTimeSeconds int32
	// RetryDelay is how long to pause after a failed receive.
	RetryDelay time.Duration
}

func New(api SQSAPI, creator Creator, queueName, queueURL string) *Queue {
	return &Queue{
		SQS:             api,
		Movies:          creator,
		Tracer:          otel.Tracer("moviequeue"),
		QueueName:       queueName,
		QueueURL:        queueURL,
		WaitTimeSeconds: 20,
		RetryDelay:      5 * time.Second,
	}
}

// ReceiveAndProcess polls the queue until ctx is done. Errors are logged and
// polling continues; a message that failed to process stays on the queue
// and is redelivered after its visibility timeout.
func (q *Queue) ReceiveAndProcess(ctx context.Context) error {
	for {
		err := q.recvAndProcess(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			continue
		}

		log.WithField("err", err).Error("error processing queue")
		var recvErr *receiveError
		if errors.As(err, &recvErr) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.RetryDelay):
			}
		}
	}
}

// receiveError marks a failed ReceiveMessage call, as opposed to a failure
// on one of the received messages.
type receiveError struct {
	err error
}

func (e *receiveError) Error() string { return "receive message: " + e.err.Error() }

func (e *receiveError) Unwrap() error { return e.err }

func (q *Queue) recvAndProcess(ctx context.Context) error {
	ctx, span := q.Tracer.Start(ctx, "recvAndProcess",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(semconv.MessagingSystemKey.String("AmazonSQS")),
		trace.WithAttributes(semconv.MessagingDestinationKey.String(q.QueueName)),
		trace.WithAttributes(semconv.MessagingDestinationKindQueue))
	defer span.End()

	msgs, err := q.receiveMessages(ctx)
	if err != nil {
		err = &receiveError{err: err}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// A failed message stays on the queue; the rest of the batch still runs.
	var errs []error
	for _, msg := range msgs {
		if err := q.processMessage(ctx, msg); err != nil {
			metrics.QueueMessagesProcessedTotal.WithLabelValues(outcomeFailed).Inc()
			errs = append(errs, fmt.Errorf("process message %q: %w", aws.ToString(msg.MessageId), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func spanErrorf(span trace.Span, format string, a ...any) error {
	err := fmt.Errorf(format, a...)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (q *Queue) receiveMessages(ctx context.Context) ([]types.Message, error) {
	res, err := q.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.QueueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     q.WaitTimeSeconds,
	})
	if err != nil {
		return nil, err
	}

	return res.Messages, nil
}

func (q *Queue) processMessage(ctx context.Context, msg types.Message) error {
	ctx, span := q.Tracer.Start(ctx, "processMessage", trace.WithAttributes(semconv.MessagingMessageIDKey.String(aws.ToString(msg.MessageId))))
	defer span.End()

	log := log.WithField("message_id", aws.ToString(msg.MessageId))

	in, err := movies.DecodeInput(strings.NewReader(aws.ToString(msg.Body)))
	if err != nil {
		// Redelivering a bad document can't fix it.
		log.WithField("err", err).Warn("discarding malformed movie message")
		return q.reject(ctx, span, msg)
	}

	movie, err := q.Movies.Create(ctx, in)
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && !apiErr.Temporary():
		log.WithField("err", err).Warn("movie rejected by API, discarding message")
		return q.reject(ctx, span, msg)
	case err != nil:
		return spanErrorf(span, "create movie: %w", err)
	}

	if err := q.deleteMessage(ctx, msg.ReceiptHandle); err != nil {
		return spanErrorf(span, "delete message: %w", err)
	}

	metrics.QueueMessagesProcessedTotal.WithLabelValues(outcomeCreated).Inc()
	log.WithField("id", movie.ID).Info("created movie from queue")
	return nil
}

func (q *Queue) reject(ctx context.Context, span trace.Span, msg types.Message) error {
	if err := q.deleteMessage(ctx, msg.ReceiptHandle); err != nil {
		return spanErrorf(span, "delete message: %w", err)
	}
	metrics.QueueMessagesProcessedTotal.WithLabelValues(outcomeRejected).Inc()
	return nil
}

func (q *Queue) deleteMessage(ctx context.Context, receiptHandle *string) error {
	_, err := q.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: receiptHandle,
	})

	return err
}
