// internal/notify/sns.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/models"
)

// SNSAPI is the slice of the SNS client the notifier needs.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSNotifier publishes events to one SNS topic with the event type as a
// message attribute, so collaborators can filter by subscription policy.
type SNSNotifier struct {
	client   SNSAPI
	topicARN string
	log      logger.Logger
}

func NewSNSNotifier(client SNSAPI, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN, log: log}
}

func (n *SNSNotifier) Publish(ctx context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(string(event.Type)),
			},
		},
	})
	if err != nil {
		n.log.Error("failed to publish event", map[string]interface{}{
			"eventType": string(event.Type),
			"entityId":  event.EntityID,
			"error":     err.Error(),
		})
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	n.log.Debug("published event", map[string]interface{}{
		"eventType": string(event.Type),
		"entityId":  event.EntityID,
		"groupId":   event.GroupID,
	})
	return nil
}
