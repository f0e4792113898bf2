package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// WatermarkStore persists "clear view" timestamps
type WatermarkStore interface {
	Load(userID, actorID string) (int64, bool, error)
	Save(userID, actorID string, ms int64) error
}

// DBWatermarkStore keeps per-user watermarks in the database
type DBWatermarkStore struct {
	db *gorm.DB
}

func NewDBWatermarkStore(db *gorm.DB) *DBWatermarkStore {
	return &DBWatermarkStore{db: db}
}

func (s *DBWatermarkStore) Load(userID, actorID string) (int64, bool, error) {
	var w models.Watermark
	err := s.db.First(&w, "user_id = ? AND actor_id = ?", userID, actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return w.DismissedAtMs, true, nil
}

// Save upserts the watermark unless a later one is already stored
func (s *DBWatermarkStore) Save(userID, actorID string, ms int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var cur models.Watermark
		err := tx.First(&cur, "user_id = ? AND actor_id = ?", userID, actorID).Error
		if err == nil && cur.DismissedAtMs >= ms {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		w := models.Watermark{UserID: userID, ActorID: actorID, DismissedAtMs: ms, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "actor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"dismissed_at_ms", "updated_at"}),
		}).Create(&w).Error
	})
}

// FileWatermarkStore keeps anonymous watermarks in a local JSON file keyed
// by actor id
type FileWatermarkStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	marks  map[string]int64
}

func NewFileWatermarkStore(path string) (*FileWatermarkStore, error) {
	if path == "" {
		return nil, errors.New("watermark file path is empty")
	}
	return &FileWatermarkStore{path: path, marks: make(map[string]int64)}, nil
}

func (s *FileWatermarkStore) Load(_ string, actorID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return 0, false, err
	}
	ms, ok := s.marks[actorID]
	return ms, ok, nil
}

func (s *FileWatermarkStore) Save(_ string, actorID string, ms int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if cur, ok := s.marks[actorID]; ok && cur >= ms {
		return nil
	}
	s.marks[actorID] = ms

	b, err := json.MarshalIndent(s.marks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileWatermarkStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return err
	}
	marks := make(map[string]int64)
	if err := json.Unmarshal(b, &marks); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.marks = marks
	s.loaded = true
	return nil
}

type watermarkKey struct {
	user, actor string
}

// WatermarkService answers watermark reads from memory. A write is visible
// to the next read immediately; persistence happens in the background and a
// failure there is only logged.
type WatermarkService struct {
	users WatermarkStore // authenticated users
	local WatermarkStore // no user

	mu    sync.Mutex
	cache map[watermarkKey]int64
	wg    sync.WaitGroup
}

func NewWatermarkService(users, local WatermarkStore) *WatermarkService {
	return &WatermarkService{users: users, local: local, cache: make(map[watermarkKey]int64)}
}

func (s *WatermarkService) store(userID string) WatermarkStore {
	if userID != "" {
		return s.users
	}
	return s.local
}

// Get returns the watermark, zero when none was ever set
func (s *WatermarkService) Get(userID, actorID string) int64 {
	key := watermarkKey{userID, actorID}
	s.mu.Lock()
	if ms, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return ms
	}
	s.mu.Unlock()

	var ms int64
	if st := s.store(userID); st != nil {
		v, ok, err := st.Load(userID, actorID)
		if err != nil {
			system.Warn("Failed to load watermark for %s/%s: %v", userID, actorID, err)
		} else if ok {
			ms = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent Set wins over the stored value
	if cur, ok := s.cache[key]; ok {
		return cur
	}
	s.cache[key] = ms
	return ms
}

// Set moves the watermark forward. It never goes backwards.
func (s *WatermarkService) Set(userID, actorID string, ms int64) int64 {
	key := watermarkKey{userID, actorID}
	s.mu.Lock()
	if cur, ok := s.cache[key]; ok && cur > ms {
		ms = cur
	}
	s.cache[key] = ms
	s.mu.Unlock()

	st := s.store(userID)
	if st == nil {
		return ms
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := st.Save(userID, actorID, ms); err != nil {
			system.Warn("Failed to persist watermark for %s/%s: %v", userID, actorID, err)
		}
	}()
	return ms
}

// Wait blocks until pending writes finished
func (s *WatermarkService) Wait() {
	s.wg.Wait()
}
