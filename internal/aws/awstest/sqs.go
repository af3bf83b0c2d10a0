package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// FakeSQS records every SendMessage call.
type FakeSQS struct {
	mu   sync.Mutex
	Sent []*sqs.SendMessageInput
	Err  error
}

func (f *FakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Sent = append(f.Sent, in)
	return &sqs.SendMessageOutput{}, nil
}

// Messages returns the bodies sent so far.
func (f *FakeSQS) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Sent))
	for _, in := range f.Sent {
		if in.MessageBody != nil {
			out = append(out, *in.MessageBody)
		}
	}
	return out
}

// FakeCloudWatch records every PutMetricData call.
type FakeCloudWatch struct {
	mu   sync.Mutex
	Puts []*cloudwatch.PutMetricDataInput
	Err  error
}

func (f *FakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Puts = append(f.Puts, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}
