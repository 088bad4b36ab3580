package repository

import (
	"context"
	"errors"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// nilUUID never matches a real settings row, so filtering on id <> nilUUID
// addresses the singleton without knowing its id.
const nilUUID = "00000000-0000-0000-0000-000000000000"

// SettingsResult is the outcome of a settings read. When Fallback is set,
// Settings holds the defaults and Cause says why the row was not used.
type SettingsResult struct {
	Settings domain.AppSettings
	Fallback bool
	Cause    error
}

// Settings is the singleton branding record.
type Settings struct {
	data backend.Data
	log  *logger.Logger
}

func NewSettings(data backend.Data, log *logger.Logger) *Settings {
	if log == nil {
		log = logger.NewDefault("settings")
	}
	return &Settings{data: data, log: log}
}

// Lookup reads the settings row. A missing row or failed query yields the
// defaults with Fallback set.
func (r *Settings) Lookup(ctx context.Context) SettingsResult {
	var row mapping.SettingsRow
	err := r.data.Select(ctx, backend.Query{Table: TableSettings}, &row)
	switch {
	case err == nil:
		return SettingsResult{Settings: mapping.SettingsToDomain(row)}
	case errors.Is(err, backend.ErrNoRows):
		r.log.Debug("no settings row, using defaults")
		return SettingsResult{Settings: domain.DefaultSettings(), Fallback: true, Cause: domain.ErrNotFound}
	default:
		r.log.WithError(err).Warn("settings unavailable, using defaults")
		return SettingsResult{Settings: domain.DefaultSettings(), Fallback: true, Cause: err}
	}
}

// Get returns the settings, or the defaults when they cannot be read.
func (r *Settings) Get(ctx context.Context) domain.AppSettings {
	return r.Lookup(ctx).Settings
}

// Update patches the singleton row. When no row exists yet one is created
// from the defaults overlaid with patch.
func (r *Settings) Update(ctx context.Context, patch domain.SettingsPatch) (domain.AppSettings, error) {
	if patch.Empty() {
		return r.Get(ctx), nil
	}

	var rows []mapping.SettingsRow
	filters := []backend.Filter{backend.Neq("id", nilUUID)}
	if err := r.data.Update(ctx, TableSettings, filters, mapping.SettingsPatch(patch), backend.Returning{}, &rows); err != nil {
		return domain.AppSettings{}, wrap("update", TableSettings, err)
	}
	if len(rows) > 0 {
		r.log.Info("settings updated")
		return mapping.SettingsToDomain(rows[0]), nil
	}

	seed := domain.DefaultSettings()
	values := map[string]any{
		"app_name":      seed.AppName,
		"primary_color": seed.PrimaryColor,
		"logo_url":      seed.LogoURL,
	}
	for k, v := range mapping.SettingsPatch(patch) {
		values[k] = v
	}
	var row mapping.SettingsRow
	if err := r.data.Insert(ctx, TableSettings, values, backend.Returning{}, &row); err != nil {
		return domain.AppSettings{}, wrap("create", TableSettings, err)
	}
	r.log.Info("settings row created")
	return mapping.SettingsToDomain(row), nil
}
