// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads the example client configuration (region,
// signing service, ring/channel buffer sizing) from YAML, trimmed from
// the teacher's agent/server config loaders down to the one shape this
// module's example wiring needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the example client configuration consumed by
// cmd/sigv4sign (for region and service) and by this package's tests.
type ClientConfig struct {
	Region          string `yaml:"region"`
	Service         string `yaml:"service"`
	RingBufferSize  string `yaml:"ring_buffer_size"`
	ChannelBufSize  string `yaml:"channel_buffer_size"`
	StreamChunkSize string `yaml:"stream_chunk_size"`
	Logging         LoggingInfo `yaml:"logging"`
}

// LoggingInfo mirrors the teacher's logging config block.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LoadClientConfig reads and validates a ClientConfig from path.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Service == "" {
		return fmt.Errorf("service is required")
	}
	for _, size := range []string{c.RingBufferSize, c.ChannelBufSize, c.StreamChunkSize} {
		if size == "" {
			continue
		}
		if _, err := ParseByteSize(size); err != nil {
			return err
		}
	}
	return nil
}

// RingBufferBytes resolves RingBufferSize, defaulting to 64KB when unset.
func (c *ClientConfig) RingBufferBytes() (int64, error) {
	if c.RingBufferSize == "" {
		return 64 * 1024, nil
	}
	return ParseByteSize(c.RingBufferSize)
}

// ParseByteSize converts human-readable strings like "256mb"/"1gb" to bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Ordered from longest suffix to shortest so "mb" never matches as "b".
	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
