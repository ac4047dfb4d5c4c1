package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubService struct {
	reqs []Request
	err  error
}

func (s *stubService) Assign(_ context.Context, req Request) (*Result, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &Result{}, nil
}

// sliceReader returns queued messages, then blocks until ctx is done.
type sliceReader struct {
	msgs []kafka.Message
	errs []error
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestConsumer_Handle(t *testing.T) {
	svc := &stubService{}
	c := NewConsumer(&sliceReader{}, svc, time.Second, nil)

	res := c.Handle(context.Background(), kafka.Message{Value: []byte(`{"co_id":2,"record_id":42,"identifier_type":"network"}`)})
	require.NotNil(t, res)
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, int64(42), svc.reqs[0].RecordID)
}

func TestConsumer_Handle_MalformedIsDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := &stubService{}
	c := NewConsumer(&sliceReader{}, svc, time.Second, zap.New(core))

	res := c.Handle(context.Background(), kafka.Message{Value: []byte(`{"co_id":2}`), Offset: 7})
	assert.Nil(t, res)
	assert.Empty(t, svc.reqs)
	assert.Equal(t, 1, logs.FilterMessage("assignment consumer: dropping malformed request").Len())
}

func TestConsumer_Handle_ServiceError(t *testing.T) {
	svc := &stubService{err: errors.New("no eppn")}
	c := NewConsumer(&sliceReader{}, svc, time.Second, nil)

	res := c.Handle(context.Background(), kafka.Message{Value: []byte(`{"co_id":2,"record_id":42,"identifier_type":"network"}`)})
	assert.Nil(t, res)
	assert.Len(t, svc.reqs, 1)
}

func TestConsumer_Run(t *testing.T) {
	svc := &stubService{}
	reader := &sliceReader{
		errs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{
			{Value: []byte(`{"co_id":2,"record_id":1,"identifier_type":"network"}`)},
			{Value: []byte(`{"co_id":2,"record_id":2,"identifier_type":"network"}`)},
		},
	}
	c := NewConsumer(reader, svc, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	require.Len(t, svc.reqs, 2)
	assert.Equal(t, int64(1), svc.reqs[0].RecordID)
	assert.Equal(t, int64(2), svc.reqs[1].RecordID)
}
