// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package autopilot

import (
	"fmt"
	"os"
	"sort"
	"time"

	yaml "github.com/go-yaml/yaml"
)

// Timing is one operation-cycle timing profile.
type Timing struct {
	Name           string
	Description    string
	DoorCloseTime  time.Duration
	MovementTime   time.Duration
	DoorOpenTime   time.Duration
	PassengerTime  time.Duration
	CycleInterval  time.Duration
	StatusInterval time.Duration
}

var presets = map[string]Timing{
	"fast": {
		Name:           "fast",
		Description:    "fast operation for testing",
		DoorCloseTime:  3 * time.Second,
		MovementTime:   5 * time.Second,
		DoorOpenTime:   3 * time.Second,
		PassengerTime:  5 * time.Second,
		CycleInterval:  2 * time.Second,
		StatusInterval: 30 * time.Second,
	},
	"normal": {
		Name:           "normal",
		Description:    "standard operation speed",
		DoorCloseTime:  5 * time.Second,
		MovementTime:   8 * time.Second,
		DoorOpenTime:   4 * time.Second,
		PassengerTime:  10 * time.Second,
		CycleInterval:  5 * time.Second,
		StatusInterval: 60 * time.Second,
	},
	"slow": {
		Name:           "slow",
		Description:    "close to a real elevator",
		DoorCloseTime:  8 * time.Second,
		MovementTime:   15 * time.Second,
		DoorOpenTime:   6 * time.Second,
		PassengerTime:  20 * time.Second,
		CycleInterval:  10 * time.Second,
		StatusInterval: 120 * time.Second,
	},
	"realistic": {
		Name:           "realistic",
		Description:    "matches a real elevator",
		DoorCloseTime:  10 * time.Second,
		MovementTime:   25 * time.Second,
		DoorOpenTime:   8 * time.Second,
		PassengerTime:  30 * time.Second,
		CycleInterval:  60 * time.Second,
		StatusInterval: 300 * time.Second,
	},
}

// PresetTiming looks up a built-in timing profile by name.
func PresetTiming(name string) (Timing, bool) {
	t, ok := presets[name]
	return t, ok
}

// PresetNames lists the built-in profiles in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// timingFile is the YAML schema for a timing override. Values are seconds;
// zero or missing fields keep the base profile's value.
type timingFile struct {
	DoorCloseSeconds float64 `yaml:"door_close_seconds"`
	MovementSeconds  float64 `yaml:"movement_seconds"`
	DoorOpenSeconds  float64 `yaml:"door_open_seconds"`
	PassengerSeconds float64 `yaml:"passenger_seconds"`
	CycleSeconds     float64 `yaml:"cycle_seconds"`
	StatusSeconds    float64 `yaml:"status_seconds"`
}

// LoadTimingFile overlays a YAML timing file onto base.
func LoadTimingFile(path string, base Timing) (Timing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read timing file: %w", err)
	}
	var tf timingFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return base, fmt.Errorf("parse timing file %s: %w", path, err)
	}

	out := base
	out.Name = base.Name + " (custom)"
	if tf.DoorCloseSeconds > 0 {
		out.DoorCloseTime = secondsToDuration(tf.DoorCloseSeconds)
	}
	if tf.MovementSeconds > 0 {
		out.MovementTime = secondsToDuration(tf.MovementSeconds)
	}
	if tf.DoorOpenSeconds > 0 {
		out.DoorOpenTime = secondsToDuration(tf.DoorOpenSeconds)
	}
	if tf.PassengerSeconds > 0 {
		out.PassengerTime = secondsToDuration(tf.PassengerSeconds)
	}
	if tf.CycleSeconds > 0 {
		out.CycleInterval = secondsToDuration(tf.CycleSeconds)
	}
	if tf.StatusSeconds > 0 {
		out.StatusInterval = secondsToDuration(tf.StatusSeconds)
	}
	return out, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
