package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID string, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

// QueuedMessage is a received message that stays invisible until deleted or
// its visibility timeout expires.
type QueuedMessage struct {
	ID         string
	PopReceipt string
	Text       string
}

// ActivityQueue publishes administrative writes to the audit queue.
type ActivityQueue struct {
	queue queueClient
}

// NewActivityQueue connects to the named queue.
func NewActivityQueue(connStr, queueName string) (*ActivityQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &ActivityQueue{queue: q}, nil
}

// EnqueueActivities sends one message per activity.
func (q *ActivityQueue) EnqueueActivities(ctx context.Context, userID string, acts []domain.Activity) error {
	for _, act := range acts {
		env := domain.ActivityEnvelope{UserID: userID, Activity: act}
		data, err := sonic.Marshal(env)
		if err != nil {
			return err
		}
		if _, err := q.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue receives the next message, or nil when the queue is empty.
func (q *ActivityQueue) Dequeue(ctx context.Context) (*QueuedMessage, error) {
	resp, err := q.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &QueuedMessage{}
	if msg.MessageID != nil {
		out.ID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		out.Text = *msg.MessageText
	}
	return out, nil
}

// Delete removes a message received by Dequeue.
func (q *ActivityQueue) Delete(ctx context.Context, id, popReceipt string) error {
	_, err := q.queue.DeleteMessage(ctx, id, popReceipt, nil)
	return err
}
