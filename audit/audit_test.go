package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

func sampleEntry() Entry {
	return Entry{
		Time:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Target:    types.Target{Kind: types.PostgreSQL, Host: "pg", Port: 5432, Username: "app", Password: "hunter2", Database: "orders"},
		Statement: "UPDATE orders\n   SET status = 'shipped'\n WHERE id = $1",
		Success:   true,
		Elapsed:   42 * time.Millisecond,
	}
}

func TestToRecordFlattensAndOmitsPassword(t *testing.T) {
	rec := sampleEntry().ToRecord()
	assert.Equal(t, "UPDATE orders SET status = 'shipped' WHERE id = $1", rec.Statement)
	assert.EqualValues(t, 42, rec.ElapsedMS)

	body, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "hunter2")
}

func TestFileRecorderAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	r, err := OpenFile(path)
	require.NoError(t, err)

	r.Record(context.Background(), sampleEntry())
	failed := sampleEntry()
	failed.Success = false
	failed.Message = "Table 'orders' doesn't exist"
	r.Record(context.Background(), failed)
	require.NoError(t, r.Close())
	r.Record(context.Background(), sampleEntry())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "postgresql", lines[0]["dbType"])
	assert.Equal(t, false, lines[1]["success"])
	assert.Equal(t, "Table 'orders' doesn't exist", lines[1]["message"])
	assert.NotContains(t, string(data), "hunter2")
}

type fakePublisher struct {
	mu        sync.Mutex
	exchange  string
	key       string
	published []amqp.Publishing
	err       error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchange, f.key = exchange, key
	f.published = append(f.published, msg)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestAMQPRecorderPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	r := NewAMQPRecorder(pub, "sqlgate.audit", "sql.executed", logger.Nop())

	r.Record(context.Background(), sampleEntry())
	require.NoError(t, r.Close())

	require.Equal(t, 1, pub.count())
	assert.Equal(t, "sqlgate.audit", pub.exchange)
	assert.Equal(t, "sql.executed", pub.key)

	msg := pub.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	var rec Record
	require.NoError(t, json.Unmarshal(msg.Body, &rec))
	assert.Equal(t, "orders", rec.Database)
	assert.True(t, rec.Success)
}

func TestAMQPRecorderSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	r := NewAMQPRecorder(pub, "x", "k", logger.Nop())

	assert.NotPanics(t, func() { r.Record(context.Background(), sampleEntry()) })
	require.NoError(t, r.Close())
	assert.Equal(t, 1, pub.count())
}

func TestAMQPRecorderDropsAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	r := NewAMQPRecorder(pub, "x", "k", logger.Nop())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	r.Record(context.Background(), sampleEntry())
	assert.Zero(t, pub.count())
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *captureRecorder) Record(_ context.Context, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	m := Multi{a, Nop{}, b, NewLogRecorder(logger.Nop())}

	m.Record(context.Background(), sampleEntry())

	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
	require.NoError(t, m.Close())
}
