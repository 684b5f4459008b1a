package interceptors_test

import (
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/pkg/kube"
)

type stage struct {
	role    string
	factory kube.InterceptorFactory
}

func newPipeline(t *testing.T, target string, stages ...stage) *http.Client {
	t.Helper()

	builder := kube.NewClientBuilder()

	for _, s := range stages {
		var err error

		builder, err = builder.AddHandler(s.role, s.factory)
		require.NoError(t, err)
	}

	base, err := url.Parse(target)
	require.NoError(t, err)

	client, err := builder.CreateClient(base, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client.HTTPClient()
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {
	l.record("debug", msg, fields)
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {
	l.record("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.record("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.record("error", msg, fields)
}

func (l *recordingLogger) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]logEntry(nil), l.entries...)
}
