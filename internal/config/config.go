// {{{ Copyright (c) Paul R. Tagliamonte <paultag@gmail.com> 2020-2021
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

// Package config builds the {delay_ms, capacity_bytes} configuration
// record spec.md treats as externally supplied (see spec.md §6). It
// layers an optional YAML file of defaults under CLI-flag overrides,
// following the DefaultConfig()+LoadConfig(path) shape used elsewhere
// in the pack for small service configs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/dtdelay/dtdelay/internal/ring"
)

// ErrParse marks a malformed delay or capacity value (maps to the
// process's numeric-parse-error exit code).
var ErrParse = errors.New("config: parse error")

// ErrCapacityTooSmall marks a capacity below one chunk's footprint:
// technically defined (spec.md §9 Open Question (c)) but never useful,
// so it is rejected here rather than silently accepted.
var ErrCapacityTooSmall = errors.New("config: capacity smaller than one chunk")

const (
	defaultDelay    = "1s"
	defaultCapacity = "1MB"
)

// Config is the resolved {delay_ms, capacity_bytes} record the
// scheduler and ring are built from.
type Config struct {
	DelayMS       int64
	CapacityBytes uint64
}

// File is the optional on-disk overlay of defaults, read before flags
// are applied. Flags always take precedence over File values.
type File struct {
	Delay    string `yaml:"delay"`
	Capacity string `yaml:"capacity"`
}

// LoadFile reads a YAML overlay file. A missing path is not an error:
// it simply means no overlay is applied.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return &f, nil
}

// Build resolves the final Config from CLI flag values (which may be
// empty, meaning "unset") layered over a File overlay, falling back to
// built-in defaults.
func Build(delayFlag, capacityFlag string, overlay *File) (Config, error) {
	if overlay == nil {
		overlay = &File{}
	}

	delayStr := firstNonEmpty(delayFlag, overlay.Delay, defaultDelay)
	capacityStr := firstNonEmpty(capacityFlag, overlay.Capacity, defaultCapacity)

	dur, err := time.ParseDuration(delayStr)
	if err != nil {
		return Config{}, fmt.Errorf("%w: delay %q: %v", ErrParse, delayStr, err)
	}
	if dur < 0 {
		return Config{}, fmt.Errorf("%w: delay %q must not be negative", ErrParse, delayStr)
	}

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(capacityStr)); err != nil {
		return Config{}, fmt.Errorf("%w: capacity %q: %v", ErrParse, capacityStr, err)
	}

	if size.Bytes() < uint64(ring.ChunkMax) {
		return Config{}, fmt.Errorf("%w: %s is smaller than one chunk (%d bytes)", ErrCapacityTooSmall, size, ring.ChunkMax)
	}

	return Config{
		DelayMS:       dur.Milliseconds(),
		CapacityBytes: size.Bytes(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
