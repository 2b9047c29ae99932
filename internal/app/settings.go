package app

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/ayusman/curlcount/internal/counter"
	"github.com/ayusman/curlcount/internal/geometry"
	"github.com/ayusman/curlcount/internal/store"
)

// Setting keys persisted in the store.
const (
	KeyLowThreshold  = "counter.low_threshold"
	KeyHighThreshold = "counter.high_threshold"
	KeyAngleMode     = "counter.angle_mode"
	KeyMinVisibility = "counter.min_visibility"
)

var settingKeys = []string{KeyLowThreshold, KeyHighThreshold, KeyAngleMode, KeyMinVisibility}

// ErrInvalidSettings wraps settings validation failures.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings tune the counting pipeline. Changes take effect at the next Start.
type Settings struct {
	Thresholds counter.Thresholds `json:"thresholds"`
	AngleMode  geometry.Mode      `json:"angle_mode"`
	// MinVisibility gates a limb on the confidence of its three joints.
	// Zero disables the gate.
	MinVisibility float64 `json:"min_visibility"`
}

// DefaultSettings uses 60/120 degree thresholds in 2D mode without gating.
func DefaultSettings() Settings {
	return Settings{
		Thresholds: counter.DefaultThresholds(),
		AngleMode:  geometry.Mode2D,
	}
}

// Validate checks thresholds, mode and visibility range.
func (s Settings) Validate() error {
	if err := s.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if !s.AngleMode.Valid() {
		return fmt.Errorf("%w: angle mode %q", ErrInvalidSettings, s.AngleMode)
	}
	if s.MinVisibility < 0 || s.MinVisibility > 1 {
		return fmt.Errorf("%w: min visibility %v", ErrInvalidSettings, s.MinVisibility)
	}
	return nil
}

func (s Settings) values() map[string]string {
	return map[string]string{
		KeyLowThreshold:  strconv.FormatFloat(s.Thresholds.Low, 'f', -1, 64),
		KeyHighThreshold: strconv.FormatFloat(s.Thresholds.High, 'f', -1, 64),
		KeyAngleMode:     string(s.AngleMode),
		KeyMinVisibility: strconv.FormatFloat(s.MinVisibility, 'f', -1, 64),
	}
}

// loadSettings overlays persisted values on base. Unparseable values are
// logged and skipped; an invalid combination falls back to base.
func loadSettings(repo *store.SettingsRepository, base Settings) (Settings, error) {
	values, err := repo.All()
	if err != nil {
		return base, err
	}

	s := base
	floats := map[string]*float64{
		KeyLowThreshold:  &s.Thresholds.Low,
		KeyHighThreshold: &s.Thresholds.High,
		KeyMinVisibility: &s.MinVisibility,
	}
	for key, dst := range floats {
		raw, ok := values[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Printf("Ignoring setting %s=%q: %v", key, raw, err)
			continue
		}
		*dst = v
	}
	if raw, ok := values[KeyAngleMode]; ok {
		s.AngleMode = geometry.Mode(raw)
	}

	if err := s.Validate(); err != nil {
		log.Printf("Ignoring stored settings: %v", err)
		return base, nil
	}
	return s, nil
}

// ResetSettings removes persisted settings and reverts to the configured
// ones. Like SetSettings it applies from the next Start.
func (a *App) ResetSettings() (Settings, error) {
	if a.config.Store != nil {
		repo := a.config.Store.Settings()
		for _, key := range settingKeys {
			if err := repo.Delete(key); err != nil && !errors.Is(err, store.ErrNotFound) {
				return a.Settings(), fmt.Errorf("delete setting %s: %w", key, err)
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = a.config.Settings
	return a.settings, nil
}
