package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpuppets-console/models"
)

func (e *testEnv) persona(t *testing.T, name, ports string) *models.Persona {
	t.Helper()
	p := &models.Persona{Name: name, OpenPorts: ports}
	require.NoError(t, e.exposure.CreatePersona(context.Background(), p))
	return p
}

func (e *testEnv) pendingCommands(t *testing.T, actorID string) []string {
	t.Helper()
	jobs, err := e.cmds.Pending(context.Background(), actorID)
	require.NoError(t, err)
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Command)
	}
	return out
}

func TestExposureActivation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")
	ctx := context.Background()

	tunnel, jobID, err := env.exposure.ActivateTunnel(ctx, "actor-1", "trap-http")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, 8080, tunnel.LocalPort)
	assert.Equal(t, []string{"tunnel open trap-http 8080"}, env.pendingCommands(t, "actor-1"))

	again, jobID, err := env.exposure.ActivateTunnel(ctx, "actor-1", "trap-http")
	require.NoError(t, err)
	assert.Empty(t, jobID)
	assert.Equal(t, tunnel.ID, again.ID)

	webcam := env.persona(t, "Web Cam", "8080, 80")
	assert.Equal(t, "80,8080", webcam.OpenPorts)

	conflicts, err := env.exposure.PersonaConflicts(ctx, "actor-1", webcam.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{8080}, conflicts)

	_, err = env.exposure.ActivatePersona(ctx, "actor-1", webcam.ID)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, ErrPortConflict)
	assert.Equal(t, []int{8080}, ce.Ports)

	actor, err := env.actors.Get(ctx, "actor-1")
	require.NoError(t, err)
	assert.Nil(t, actor.PersonaID, "refused activation must not mutate")
	assert.Empty(t, env.pendingCommands(t, "actor-1"), "refused activation must not issue commands")

	dvr := env.persona(t, "Hikvision DVR", "80,443")
	_, err = env.exposure.ActivatePersona(ctx, "actor-1", dvr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"persona apply Hikvision DVR"}, env.pendingCommands(t, "actor-1"))

	tables, err := env.exposure.Tables(ctx, "actor-1")
	require.NoError(t, err)
	assert.False(t, tables.Live)
	assert.Equal(t, []models.PortClaim{
		{Port: 80, Proto: "TCP", Service: "HTTP", Source: "Persona: Hikvision DVR"},
		{Port: 443, Proto: "TCP", Service: "HTTPS", Source: "Persona: Hikvision DVR"},
		{Port: 8080, Proto: "TCP", Service: "HTTP", Source: "Cloud Tunnel"},
	}, tables.Application)

	// a trap whose port the persona holds is refused
	require.NoError(t, env.db.Create(&models.Trap{ID: "trap-web", Name: "Web", ServiceType: "HTTP", DefaultPort: 443}).Error)
	conflicts, err = env.exposure.TunnelConflicts(ctx, "actor-1", "trap-web")
	require.NoError(t, err)
	assert.Equal(t, []int{443}, conflicts)
	_, _, err = env.exposure.ActivateTunnel(ctx, "actor-1", "trap-web")
	assert.ErrorIs(t, err, ErrPortConflict)
	actor, err = env.actors.Get(ctx, "actor-1")
	require.NoError(t, err)
	assert.Len(t, actor.Tunnels, 1)

	jobID, err = env.exposure.DeactivateTunnel(ctx, "actor-1", "trap-http")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, []string{"tunnel close trap-http"}, env.pendingCommands(t, "actor-1"))
	_, err = env.exposure.DeactivateTunnel(ctx, "actor-1", "trap-http")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExposureLiveScanWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.actors.Heartbeat(ctx, LocalActorID, HeartbeatRequest{Name: "console"})
	require.NoError(t, err)

	_, _, err = env.exposure.ActivateTunnel(ctx, LocalActorID, "trap-redis")
	require.NoError(t, err)
	env.cmds.Wait()

	live, err := env.scans.Run(ctx, LocalActorID)
	require.NoError(t, err)

	tables, err := env.exposure.Tables(ctx, LocalActorID)
	require.NoError(t, err)
	assert.True(t, tables.Live)
	assert.Equal(t, live.System, tables.System)
	assert.Equal(t, live.Application, tables.Application)

	// 2222 is an application port in the scan, not a system one
	conflicts, err := env.exposure.TunnelConflicts(ctx, LocalActorID, "trap-ssh")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestExposureUnknownEntities(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "actor-1", "")
	ctx := context.Background()

	_, err := env.exposure.Tables(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.exposure.PersonaConflicts(ctx, "actor-1", 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.exposure.TunnelConflicts(ctx, "actor-1", "trap-none")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.exposure.CreatePersona(ctx, &models.Persona{Name: "  "}), ErrInvalidPersona)

	require.NoError(t, env.exposure.CreatePersona(ctx, &models.Persona{Name: "Edge Router", OpenPorts: "80"}))
	err = env.exposure.CreatePersona(ctx, &models.Persona{Name: "Edge Router", OpenPorts: "443"})
	require.Error(t, err, "persona names are unique")
	assert.False(t, errors.Is(err, ErrInvalidPersona))

	traps, err := env.exposure.ListTraps(ctx)
	require.NoError(t, err)
	assert.Len(t, traps, len(models.SeedDefaultTraps()))
}
