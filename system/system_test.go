package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockExecutor(t *testing.T) {
	e := &MockExecutor{Outputs: map[string]string{"uname -a": "Linux decoy"}}
	ctx := context.Background()

	out, err := e.Execute(ctx, "uname", "-a")
	require.NoError(t, err)
	assert.Equal(t, "Linux decoy", out)

	out, err = e.Execute(ctx, "ss", "-lntup")
	require.NoError(t, err)
	assert.Equal(t, MockSocketTable, out)

	_, err = e.Execute(ctx, "false")
	assert.Error(t, err)

	out, err = e.Execute(ctx, "persona", "apply", "x")
	require.NoError(t, err)
	assert.Equal(t, "Mock Success", out)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Execute(cancelled, "ss")
	assert.ErrorIs(t, err, context.Canceled)

	assert.True(t, strings.HasPrefix(e.GetOS(), "mock-"))
}

func TestInitLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, "debug"))
	t.Cleanup(func() {
		Close()
		SetLogger(nil)
	})

	Info("actor %s online", "dvr-01")
	Debug("tick")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "vpuppets-"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "actor dvr-01 online")
	assert.Contains(t, string(data), "tick")
}

func TestInitLoggerRejectsLevel(t *testing.T) {
	err := InitLogger(t.TempDir(), "chatty")
	assert.Error(t, err)
}
