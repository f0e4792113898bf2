package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpuppets-console/models"
)

// WireLog is a log entry as agents and the telemetry feed send it.
// Timestamp is RFC3339, another common layout, or epoch milliseconds.
type WireLog struct {
	ID        string          `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
	ActorID   string          `json:"actor_id"`
	Level     string          `json:"level"`
	Process   string          `json:"process"`
	Message   string          `json:"message"`
	SourceIP  string          `json:"source_ip"`
}

// IngestService validates and stores incoming log entries
type IngestService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIngestService(db *gorm.DB) *IngestService {
	return &IngestService{db: db, now: time.Now}
}

// IngestJSON decodes one JSON log entry and stores it
func (s *IngestService) IngestJSON(ctx context.Context, data []byte, source string) (*models.LogEntry, error) {
	var w WireLog
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		logsRejected.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidLog, err)
	}
	return s.Ingest(ctx, w, source)
}

// Ingest validates a wire entry, resolves the actor name and stores it
func (s *IngestService) Ingest(ctx context.Context, w WireLog, source string) (*models.LogEntry, error) {
	entry, err := s.convert(w)
	if err != nil {
		logsRejected.WithLabelValues(source).Inc()
		return nil, err
	}

	var actor models.Actor
	err = s.db.WithContext(ctx).Select("id", "name").First(&actor, "id = ?", entry.ActorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logsRejected.WithLabelValues(source).Inc()
		return nil, fmt.Errorf("actor %s: %w", entry.ActorID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	entry.ActorName = actor.Name

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("store log entry: %w", err)
	}
	logsIngested.WithLabelValues(string(entry.Level), source).Inc()
	return entry, nil
}

func (s *IngestService) convert(w WireLog) (*models.LogEntry, error) {
	if strings.TrimSpace(w.ActorID) == "" {
		return nil, fmt.Errorf("%w: missing actor_id", ErrInvalidLog)
	}
	level, ok := models.ParseLevel(w.Level)
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidLog, w.Level)
	}
	ts, err := parseWireTime(w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLog, err)
	}
	if ts.IsZero() {
		ts = s.now()
	}

	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &models.LogEntry{
		ID:        id,
		Timestamp: ts,
		ActorID:   strings.TrimSpace(w.ActorID),
		Level:     level,
		Process:   strings.TrimSpace(w.Process),
		Message:   w.Message,
		SourceIP:  strings.TrimSpace(w.SourceIP),
	}, nil
}

// parseWireTime accepts a JSON string or number. A missing value yields the
// zero time.
func parseWireTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		return ParseTimeFlexible(s)
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s is not epoch milliseconds", raw)
	}
	return time.UnixMilli(ms), nil
}

// ParseTimeFlexible parses the timestamp layouts agents are known to emit
func ParseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999-0700",
		"2006-01-02T15:04:05.999999Z0700",
		"2006-01-02 15:04:05.999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}
