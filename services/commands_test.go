package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

func TestCommandLocalExecution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	okID, err := env.cmds.Issue(ctx, LocalActorID, "uptime")
	require.NoError(t, err)
	failID, err := env.cmds.Issue(ctx, LocalActorID, "false")
	require.NoError(t, err)
	env.cmds.Wait()

	job, err := env.cmds.Result(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, "Mock Success", job.Output)
	assert.NotNil(t, job.CompletedAt)

	job, err = env.cmds.Result(ctx, failID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Output, "exit status 1")
}

func TestCommandAgentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")
	ctx := context.Background()

	_, err := env.cmds.Issue(ctx, "actor-1", "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
	_, err = env.cmds.Issue(ctx, "ghost", "id")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := env.cmds.Issue(ctx, "actor-1", "id")
	require.NoError(t, err)
	env.cmds.now = func() time.Time { return time.Now().Add(time.Second) }
	second, err := env.cmds.Issue(ctx, "actor-1", "uname -a")
	require.NoError(t, err)

	job, err := env.cmds.Result(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)

	jobs, err := env.cmds.Pending(ctx, "actor-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first, jobs[0].ID)
	assert.Equal(t, second, jobs[1].ID)
	assert.Equal(t, models.JobRunning, jobs[0].Status)

	jobs, err = env.cmds.Pending(ctx, "actor-1")
	require.NoError(t, err)
	assert.Empty(t, jobs, "handed out jobs are not handed out again")

	require.NoError(t, env.cmds.Complete(ctx, first, "uid=0(root)", false))
	require.NoError(t, env.cmds.Complete(ctx, first, "overwritten?", true))
	job, err = env.cmds.Result(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, "uid=0(root)", job.Output)

	assert.ErrorIs(t, env.cmds.Complete(ctx, "missing", "", false), ErrJobNotFound)
	_, err = env.cmds.Result(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScanLocal(t *testing.T) {
	env := newTestEnv(t)

	tables, err := env.scans.Run(context.Background(), LocalActorID)
	require.NoError(t, err)
	assert.True(t, tables.Live)
	assert.Equal(t, []models.PortClaim{
		{Port: 22, Proto: "TCP", Service: "SSH", Source: "Host OS"},
	}, tables.System)
	assert.Equal(t, []models.PortClaim{
		{Port: 80, Proto: "TCP", Service: "Persona", Source: "Persona"},
		{Port: 2222, Proto: "TCP", Service: "Tunnel", Source: "Cloud Tunnel"},
	}, tables.Application)

	st := env.scans.Status(LocalActorID)
	assert.False(t, st.InProgress)
	assert.Empty(t, st.LastError)
	assert.NotNil(t, st.ScannedAt)
	assert.Same(t, tables, env.scans.Latest(LocalActorID))
}

func TestScanTimeoutResetsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")
	env.scans.timeout = 60 * time.Millisecond

	_, err := env.scans.Run(context.Background(), "actor-1")
	assert.ErrorIs(t, err, ErrScanTimeout)

	st := env.scans.Status("actor-1")
	assert.False(t, st.InProgress)
	assert.Contains(t, st.LastError, "timed out")
	assert.Nil(t, env.scans.Latest("actor-1"))
}

func TestScanStoreErrorAfterDeadlineIsTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")

	// the store sees a dead context on every query
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := env.scans.Run(ctx, "actor-1")
	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.False(t, env.scans.Status("actor-1").InProgress)
}

func TestScanContextError(t *testing.T) {
	env := newTestEnv(t)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.ErrorIs(t, env.scans.ctxError(expired), ErrScanTimeout)

	canceled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	err := env.scans.ctxError(canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrScanTimeout))
}

func TestScanStartRejectsOverlap(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")

	require.NoError(t, env.scans.Start("actor-1"))
	assert.True(t, env.scans.Status("actor-1").InProgress)
	assert.ErrorIs(t, env.scans.Start("actor-1"), ErrScanInProgress)

	// the agent answers the pending scan
	require.Eventually(t, func() bool {
		jobs, err := env.cmds.Pending(context.Background(), "actor-1")
		if err != nil || len(jobs) == 0 {
			return false
		}
		return env.cmds.Complete(context.Background(), jobs[0].ID, system.MockSocketTable, false) == nil
	}, time.Second, 5*time.Millisecond)

	env.scans.Wait()
	st := env.scans.Status("actor-1")
	assert.False(t, st.InProgress)
	assert.Empty(t, st.LastError)
	require.NotNil(t, env.scans.Latest("actor-1"))
}

func TestScanFailedJob(t *testing.T) {
	env := newTestEnv(t)
	env.cmds.executor = failingExecutor{}

	_, err := env.scans.Run(context.Background(), LocalActorID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrScanTimeout))
	assert.Contains(t, env.scans.Status(LocalActorID).LastError, "failed")
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, string, ...string) (string, error) {
	return "", errors.New("ss: command not found")
}

func (failingExecutor) GetOS() string { return "test" }
