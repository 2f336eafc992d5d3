package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps X-Ray so the persistence decorators do not depend on
// the SDK directly. Outside Lambda there is no parent segment; every
// method degrades to a no-op then, which keeps local development and
// tests free of X-Ray context errors.
type Tracer struct {
	serviceName string
}

func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// TraceFunction runs fn inside a subsegment named after the operation.
// Errors returned by fn are recorded on the subsegment and passed
// through unchanged.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, name)
	if seg == nil {
		return fn(ctx)
	}

	err := fn(ctx)
	seg.Close(err)
	return err
}

// Segment opens a root segment for entry points that are not already
// traced, such as background workers
func (t *Tracer) Segment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSegment(ctx, t.serviceName+"."+name)
}

// AddAnnotation attaches an indexed key to the current segment so
// traces can be filtered by it
func (t *Tracer) AddAnnotation(ctx context.Context, key, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}

// AddMetadata attaches unindexed detail to the current segment
func (t *Tracer) AddMetadata(ctx context.Context, key string, value interface{}) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddMetadata(key, value)
	}
}

// RecordError marks the current segment as failed
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddError(err)
	}
}
