package app

import (
	"context"
	"encoding/json"
	"fmt"

	"example/cpl-trainer/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Enqueuer accepts calibration jobs. The HTTP layer only needs this half.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.CalibrationMessage) error
}

// sqsAPI is the part of *sqs.Client the queue uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// CalibrationQueue carries calibration jobs over SQS.
type CalibrationQueue struct {
	client   sqsAPI
	queueURL string
}

// Delivery is a received job and the handle needed to acknowledge it.
// Job is zero and Err set when the body could not be decoded.
type Delivery struct {
	Job           models.CalibrationMessage
	Err           error
	receiptHandle *string
}

func NewCalibrationQueue(ctx context.Context, queueURL string) (*CalibrationQueue, error) {
	if queueURL == "" {
		return nil, ErrNoQueue
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SQS: %w", err)
	}
	return &CalibrationQueue{client: sqs.NewFromConfig(awsCfg), queueURL: queueURL}, nil
}

func (q *CalibrationQueue) Enqueue(ctx context.Context, job models.CalibrationMessage) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message for job %s: %w", job.JobID, err)
	}
	return nil
}

// Receive long-polls for up to maxMessages jobs.
func (q *CalibrationQueue) Receive(ctx context.Context, maxMessages, visibility int32) ([]Delivery, error) {
	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   visibility,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Delivery, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, decodeDelivery(m))
	}
	return out, nil
}

// Ack deletes a processed (or undecodable) message.
func (q *CalibrationQueue) Ack(ctx context.Context, d Delivery) error {
	if d.receiptHandle == nil {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: d.receiptHandle,
	})
	return err
}

func decodeDelivery(m sqstypes.Message) Delivery {
	d := Delivery{receiptHandle: m.ReceiptHandle}
	if m.Body == nil {
		d.Err = fmt.Errorf("message %s has no body", aws.ToString(m.MessageId))
		return d
	}
	if err := json.Unmarshal([]byte(*m.Body), &d.Job); err != nil {
		d.Err = fmt.Errorf("decoding calibration message: %w", err)
	}
	return d
}
