package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes counters and timings to CloudWatch. Publishing is
// fire-and-forget; a metrics failure never affects the request path.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
}

// NewMetrics creates a CloudWatch-backed metrics recorder
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// Increment bumps a counter metric by one
func (m *Metrics) Increment(metric, label string) {
	m.put(metric, label, 1, types.StandardUnitCount)
}

// StartTimer begins timing; Stop on the returned timer records the
// elapsed milliseconds
func (m *Metrics) StartTimer(metric, label string) Timer {
	return &cloudWatchTimer{
		metrics: m,
		metric:  metric,
		label:   label,
		start:   time.Now(),
	}
}

// Timer records one duration when stopped
type Timer interface {
	Stop()
}

type cloudWatchTimer struct {
	metrics *Metrics
	metric  string
	label   string
	start   time.Time
}

func (t *cloudWatchTimer) Stop() {
	elapsed := float64(time.Since(t.start).Milliseconds())
	t.metrics.put(t.metric, t.label, elapsed, types.StandardUnitMilliseconds)
}

func (m *Metrics) put(metric, label string, value float64, unit types.StandardUnit) {
	if m.client == nil {
		return
	}

	datum := types.MetricDatum{
		MetricName: aws.String(metric),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
	}
	if label != "" {
		datum.Dimensions = []types.Dimension{
			{Name: aws.String("Label"), Value: aws.String(label)},
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: []types.MetricDatum{datum},
		})
	}()
}
