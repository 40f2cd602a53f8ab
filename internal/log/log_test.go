package log

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })

	Info(CatCommand, "command applied", "type", "paint_cell", "duration", "3ms")

	line := buf.String()
	require.Contains(t, line, "[INFO] [command] command applied")
	require.Contains(t, line, "type=paint_cell")
	require.Contains(t, line, "duration=3ms")
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })

	Warn(CatReader, "orphan", "key")

	require.Contains(t, buf.String(), "key=<missing>")
}

func TestLog_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })

	SetMinLevel(LevelWarn)
	Debug(CatUI, "hidden")
	Error(CatUI, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })

	ErrorErr(CatTransport, "request failed", nil)

	require.Contains(t, buf.String(), "error=<nil>")
}

func TestLog_DisabledWhenUninitialized(t *testing.T) {
	defaultLogger = nil
	require.NotPanics(t, func() { Info(CatConfig, "nothing happens") })
	require.Nil(t, NewListener(context.Background()))
}

func TestLog_ListenerReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatRefresh, "state invalidated")

	done := make(chan any, 1)
	go func() { done <- listener.Listen()() }()

	select {
	case msg := <-done:
		event, ok := msg.(LogEvent)
		require.True(t, ok)
		require.Contains(t, event.Payload, "state invalidated")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("INFO"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelDebug, ParseLevel(""))
}
