// Package metrics publishes order counters to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
)

const (
	MetricOrdersCreated = "OrdersCreated"
	MetricOrderRevenue  = "OrderRevenue"
	MetricOrderItems    = "OrderItems"
)

// Recorder writes order metrics under one namespace.
type Recorder struct {
	cw        aws.CloudWatchAPI
	namespace string
}

func NewRecorder(cw aws.CloudWatchAPI, namespace string) *Recorder {
	return &Recorder{cw: cw, namespace: namespace}
}

// OrderCreated records one created order with its revenue and item count,
// dimensioned by table.
func (r *Recorder) OrderCreated(ctx context.Context, table string, total int64, items int, at time.Time) error {
	dims := []cwtypes.Dimension{{Name: sdkaws.String("Table"), Value: sdkaws.String(table)}}
	_, err := r.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(MetricOrdersCreated),
				Unit:       cwtypes.StandardUnitCount,
				Value:      sdkaws.Float64(1),
				Timestamp:  sdkaws.Time(at),
				Dimensions: dims,
			},
			{
				MetricName: sdkaws.String(MetricOrderRevenue),
				Unit:       cwtypes.StandardUnitNone,
				Value:      sdkaws.Float64(float64(total)),
				Timestamp:  sdkaws.Time(at),
				Dimensions: dims,
			},
			{
				MetricName: sdkaws.String(MetricOrderItems),
				Unit:       cwtypes.StandardUnitCount,
				Value:      sdkaws.Float64(float64(items)),
				Timestamp:  sdkaws.Time(at),
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put order metrics: %w", err)
	}
	return nil
}
