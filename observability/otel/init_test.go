package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =skip,tenant=ontlock")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "ontlock"}, headers)
}

func TestInitWithoutExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "ontlockd", Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	counter, err := OperationCounter()
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	require.NotNil(t, Tracer())
}
