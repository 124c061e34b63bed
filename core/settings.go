package core

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/types"
)

// SettingsStore persists the dashboard's single LabSettings object.
type SettingsStore struct {
	db  *Database
	log *zap.Logger
}

func NewSettingsStore(db *Database, log *zap.Logger) *SettingsStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsStore{db: db, log: log}
}

// Load returns the saved settings, or the defaults when nothing usable is
// stored.
func (s *SettingsStore) Load(ctx context.Context) (types.LabSettings, error) {
	raw, ok, err := s.db.Get(ctx, SettingsKey)
	if err != nil {
		return types.LabSettings{}, err
	}
	if !ok {
		return types.DefaultLabSettings(), nil
	}
	var settings types.LabSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.log.Warn("ignoring unreadable settings",
			zap.Error(fmt.Errorf("%w: %v", ErrStorageCorrupt, err)))
		return types.DefaultLabSettings(), nil
	}
	return settings, nil
}

func (s *SettingsStore) Save(ctx context.Context, settings types.LabSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.db.Set(ctx, SettingsKey, string(data))
}
