package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stake-plus/landvote/src/api/types"
	"gorm.io/gorm"
)

var (
	settingsMu    sync.RWMutex
	settingsCache = map[string]string{}
)

// LoadSettings replaces the cache with the active rows of the settings table.
func LoadSettings(db *gorm.DB) error {
	var rows []types.Setting
	if err := db.Where("active = ?", 1).Find(&rows).Error; err != nil {
		return err
	}
	next := make(map[string]string, len(rows))
	for _, r := range rows {
		next[r.Name] = r.Value
	}

	settingsMu.Lock()
	settingsCache = next
	settingsMu.Unlock()
	return nil
}

// GetSetting reads the cache filled by LoadSettings.
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// PutSetting activates name with value, creating the row if needed. Running
// services pick the value up on their next LoadSettings.
func PutSetting(ctx context.Context, db *gorm.DB, name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 32 {
		return fmt.Errorf("settings: name must be 1-32 characters")
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row types.Setting
		err := tx.Where("name = ?", name).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&types.Setting{Name: name, Value: value, Active: 1}).Error
		case err != nil:
			return err
		}
		return tx.Model(&types.Setting{}).Where("name = ?", name).
			Updates(map[string]interface{}{"value": value, "active": 1}).Error
	})
}

// ActiveSettings lists the active settings sorted by name.
func ActiveSettings(ctx context.Context, db *gorm.DB) ([]types.Setting, error) {
	var rows []types.Setting
	if err := db.WithContext(ctx).Where("active = ?", 1).Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}
