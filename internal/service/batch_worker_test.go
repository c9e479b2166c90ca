package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payroll-core/internal/payroll"
	"payroll-core/internal/service/mq"
)

type scriptedRunner struct {
	res        *payroll.RunResult
	err        error
	gotPayload []byte
	gotURL     string
}

func (r *scriptedRunner) RunBatchFromPayload(_ context.Context, url string, payload []byte) (*payroll.RunResult, error) {
	r.gotURL, r.gotPayload = url, payload
	return r.res, r.err
}

type capturingProducer struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *capturingProducer) Publish(_ context.Context, topic, _ string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *capturingProducer) Close() error { return nil }

func (p *capturingProducer) last(t *testing.T) RunResultEvent {
	t.Helper()
	require.NotEmpty(t, p.payloads)
	var ev RunResultEvent
	require.NoError(t, json.Unmarshal(p.payloads[len(p.payloads)-1], &ev))
	return ev
}

func TestBatchWorkerPublishesResult(t *testing.T) {
	runner := &scriptedRunner{res: &payroll.RunResult{Outcomes: []payroll.TransferOutcome{
		{Status: payroll.StatusSuccess}, {Status: payroll.StatusUnconfirmed},
	}}}
	producer := &capturingProducer{}
	w := NewBatchWorker(runner, producer, nil)

	msg := &mq.Message{ID: "1-0", Payload: []byte(`{"request_id":"req-7","rpc_url":"https://rpc.example.org","employees_json":"[{\"accountId\":\"0x1\",\"salary\":1}]"}`)}
	require.NoError(t, w.Handler(context.Background())(msg))

	assert.Equal(t, "https://rpc.example.org", runner.gotURL)
	assert.Equal(t, `"[{\"accountId\":\"0x1\",\"salary\":1}]"`, string(runner.gotPayload))
	assert.Equal(t, []string{mq.TopicRunResults}, producer.topics)

	ev := producer.last(t)
	assert.Equal(t, "req-7", ev.RequestID)
	assert.Equal(t, "completed", ev.Status)
	assert.Equal(t, 1, ev.Delivered)
	assert.Equal(t, 1, ev.Undelivered)
}

func TestBatchWorkerRetriesWhenSenderBusy(t *testing.T) {
	runner := &scriptedRunner{err: fmt.Errorf("%w: 0xabc", payroll.ErrRunInProgress)}
	producer := &capturingProducer{}
	w := NewBatchWorker(runner, producer, nil)

	err := w.Handler(context.Background())(&mq.Message{ID: "1-0", Payload: []byte(`{"request_id":"r","employees_json":[]}`)})
	assert.ErrorIs(t, err, payroll.ErrRunInProgress)
	assert.Empty(t, producer.topics)
}

func TestBatchWorkerAcksAfterRunEvenIfPublishFails(t *testing.T) {
	runner := &scriptedRunner{res: &payroll.RunResult{}}
	producer := &capturingProducer{err: errors.New("broker down")}
	w := NewBatchWorker(runner, producer, nil)

	err := w.Handler(context.Background())(&mq.Message{ID: "1-0", Payload: []byte(`{"request_id":"r","employees_json":[]}`)})
	assert.NoError(t, err)
}

func TestBatchWorkerRejectsBadEvents(t *testing.T) {
	producer := &capturingProducer{}
	w := NewBatchWorker(&scriptedRunner{}, producer, nil)

	require.NoError(t, w.Handler(context.Background())(&mq.Message{ID: "9-0", Payload: []byte(`not json`)}))
	ev := producer.last(t)
	assert.Equal(t, "9-0", ev.RequestID)
	assert.Equal(t, "rejected", ev.Status)

	runner := &scriptedRunner{err: fmt.Errorf("%w: entry 0", payroll.ErrInvalidRecipient)}
	w = NewBatchWorker(runner, producer, nil)
	require.NoError(t, w.Handler(context.Background())(&mq.Message{ID: "10-0", Payload: []byte(`{"employees_json":[]}`)}))
	ev = producer.last(t)
	assert.Equal(t, "10-0", ev.RequestID)
	assert.Equal(t, "rejected", ev.Status)
	assert.Contains(t, ev.Error, "invalid recipient")
}
