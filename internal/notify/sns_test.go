package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/models"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSNotifierPublish(t *testing.T) {
	fake := &fakeSNS{}
	n := NewSNSNotifier(fake, "arn:aws:sns:eu-west-1:123:events", logger.NewNoOpLogger())

	event := models.Event{
		Type:       models.EventProposalResolved,
		EntityID:   "p1",
		GroupID:    "g1",
		State:      "approved",
		OccurredAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.Publish(context.Background(), event))

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:events", *in.TopicArn)
	assert.Equal(t, "ProposalResolved", *in.MessageAttributes["eventType"].StringValue)

	var decoded models.Event
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &decoded))
	assert.Equal(t, event, decoded)
}

func TestSNSNotifierPublishError(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	n := NewSNSNotifier(fake, "arn", logger.NewNoOpLogger())

	err := n.Publish(context.Background(), models.Event{Type: models.EventGroupFormed})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), models.Event{Type: models.EventGroupFormed, GroupID: "g1"}))
	require.NoError(t, r.Publish(context.Background(), models.Event{Type: models.EventProposalOpened, GroupID: "g1"}))

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.ByType(models.EventGroupFormed), 1)
}
