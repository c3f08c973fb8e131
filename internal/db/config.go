package db

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/logger"
)

// Stored config keys.
const (
	keyMaxSearch        = "max_search"
	keyPreDecompression = "pre_decompression"
	keyTypesPath        = "types_path"
	keySpecialFields    = "special_fields"
	keyPriceCommands    = "price_commands"
)

// LoadConfig overlays the stored settings onto a copy of base.
// Unreadable values are skipped and leave the base value in place.
func (d *DB) LoadConfig(base *config.Config) *config.Config {
	cfg := base.Clone()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		logger.Warn("DB", "Config read failed", zap.Error(err))
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err == nil {
			m[k] = v
		}
	}
	if len(m) == 0 {
		return cfg
	}

	if v, ok := m[keyMaxSearch]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSearch = n
		}
	}
	if v, ok := m[keyPreDecompression]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreDecompression = b
		}
	}
	if v, ok := m[keyTypesPath]; ok && v != "" {
		cfg.TypesPath = v
	}
	if v, ok := m[keySpecialFields]; ok {
		var fields []config.SpecialField
		if err := json.Unmarshal([]byte(v), &fields); err == nil {
			cfg.SpecialFields = fields
		}
	}
	if v, ok := m[keyPriceCommands]; ok {
		var cmds []config.PriceCommand
		if err := json.Unmarshal([]byte(v), &cmds); err == nil && len(cmds) > 0 {
			cfg.PriceCommands = cmds
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("DB", "Stored config rejected, using base", zap.Error(err))
		return base.Clone()
	}
	return cfg
}

// SaveConfig writes the persisted settings of cfg (upsert all keys).
func (d *DB) SaveConfig(cfg *config.Config) error {
	fieldsJSON := "[]"
	if b, err := json.Marshal(cfg.SpecialFields); err == nil && cfg.SpecialFields != nil {
		fieldsJSON = string(b)
	}
	cmdsJSON := "[]"
	if b, err := json.Marshal(cfg.PriceCommands); err == nil && cfg.PriceCommands != nil {
		cmdsJSON = string(b)
	}

	pairs := map[string]string{
		keyMaxSearch:        strconv.Itoa(cfg.MaxSearch),
		keyPreDecompression: strconv.FormatBool(cfg.PreDecompression),
		keyTypesPath:        cfg.TypesPath,
		keySpecialFields:    fieldsJSON,
		keyPriceCommands:    cmdsJSON,
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value, updated_at) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
