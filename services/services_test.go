package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vpuppets-console/models"
	"vpuppets-console/replay"
	"vpuppets-console/system"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	_, err = models.SeedTraps(db)
	require.NoError(t, err)
	return db
}

func useTestLogger(t *testing.T) {
	system.SetLogger(zaptest.NewLogger(t))
	t.Cleanup(func() { system.SetLogger(nil) })
}

type statusChange struct {
	actor    string
	from, to models.ActorStatus
}

type testEnv struct {
	db         *gorm.DB
	actors     *ActorService
	ingest     *IngestService
	watermarks *WatermarkService
	threats    *ThreatService
	cmds       *CommandService
	scans      *ScanService
	exposure   *ExposureService
	sessions   *SessionService
	localMarks string

	mu      sync.Mutex
	changes []statusChange
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	useTestLogger(t)
	db := newTestDB(t)

	env := &testEnv{db: db, localMarks: filepath.Join(t.TempDir(), "watermarks.json")}
	env.actors = NewActorService(db)
	env.actors.OnStatusChange(func(a models.Actor, from, to models.ActorStatus) {
		env.mu.Lock()
		env.changes = append(env.changes, statusChange{a.ID, from, to})
		env.mu.Unlock()
	})

	local, err := NewFileWatermarkStore(env.localMarks)
	require.NoError(t, err)
	env.watermarks = NewWatermarkService(NewDBWatermarkStore(db), local)
	env.ingest = NewIngestService(db)
	geo, err := NewGeoIPService("")
	require.NoError(t, err)
	env.threats = NewThreatService(db, env.actors, env.watermarks, geo)
	env.cmds = NewCommandService(db, &system.MockExecutor{})
	env.scans = NewScanService(env.cmds, 2*time.Second, 10*time.Millisecond)
	env.exposure = NewExposureService(db, env.actors, env.scans, env.cmds)
	env.sessions = NewSessionService(db)

	t.Cleanup(func() {
		env.scans.Wait()
		env.cmds.Wait()
		env.watermarks.Wait()
	})
	return env
}

func (e *testEnv) register(t *testing.T, id, wan string) *models.Actor {
	t.Helper()
	a, err := e.actors.Heartbeat(context.Background(), id, HeartbeatRequest{Name: id + "-name", WanIP: wan})
	require.NoError(t, err)
	return a
}

func (e *testEnv) statusChanges() []statusChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]statusChange(nil), e.changes...)
}

// idleScheduler never fires; tests drive engines with Tick
type idleScheduler struct{}

type idleTask struct{}

func (idleTask) Stop() {}

func (idleScheduler) Every(time.Duration, func()) replay.Task { return idleTask{} }
