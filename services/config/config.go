// Package config publishes the embedded per-device configuration. Every
// top-level key of the device's JSON object is published retained on
// config/<key>, where the HAL and the application services pick it up.
package config

import (
	"context"
	"encoding/json"
	"errors"

	"picodemo/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key holding the device ID.
const CtxDeviceKey ctxKey = "device"

var (
	ErrNoDevice   = errors.New("config: missing device ID in context")
	ErrNoConfig   = errors.New("config: no embedded config for device")
	ErrNotObject  = errors.New("config: embedded config is not a JSON object")
	ErrBadSection = errors.New("config: section does not match its schema")
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Topic is config/<key>.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

// Decode converts a config payload (decoded JSON or an already typed value)
// into T.
func Decode[T any](payload any) (T, error) {
	var out T
	if t, ok := payload.(T); ok {
		return t, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return out, errors.Join(ErrBadSection, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, errors.Join(ErrBadSection, err)
	}
	return out, nil
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes it
// as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return ErrNoDevice
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return ErrNoConfig
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return ErrNotObject
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(Topic(k), v, true))
	}
	return nil
}

// Start publishes the configuration and returns once every key is on the
// bus.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) error {
	if err := s.publishConfig(ctx, conn); err != nil {
		println("[config] " + err.Error())
		return err
	}
	return nil
}
