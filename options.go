// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// DefaultMaxLoadFactor is the load factor above which a table grows.
	DefaultMaxLoadFactor = 0.8

	// defaultMaxCapacity bounds the number of buckets a table may allocate.
	// It is far beyond what fits in memory on 64-bit platforms and keeps the
	// capacity arithmetic clear of overflow on 32-bit ones.
	defaultMaxCapacity = uintptr(1) << (bits.UintSize/2 + 8)
)

// config holds the construction parameters shared by every table variant.
type config[K comparable] struct {
	maxLoad     float64
	minLoad     float64
	maxCapacity uintptr
	hasher      Hasher[K]
	// equal is nil when keys are compared with ==.
	equal  Equality[K]
	logger *zap.Logger
}

// option provide an interface to do work on a table while it is being
// created.
type option[K comparable] interface {
	apply(c *config[K])
}

type optionFunc[K comparable] func(c *config[K])

func (f optionFunc[K]) apply(c *config[K]) {
	f(c)
}

// WithMaxLoadFactor is an option to specify the ratio of live entries to
// buckets above which the table grows. It must be in the open interval
// (0, 1).
func WithMaxLoadFactor[K comparable](f float64) option[K] {
	return optionFunc[K](func(c *config[K]) {
		c.maxLoad = f
	})
}

// WithMinLoadFactor is an option to specify the ratio of live entries to
// buckets below which Delete shrinks the table. Zero, the default, disables
// shrinking. It must be less than half of the max load factor so that a
// shrunk table is not immediately due to grow again.
func WithMinLoadFactor[K comparable](f float64) option[K] {
	return optionFunc[K](func(c *config[K]) {
		c.minLoad = f
	})
}

// WithHasher is an option to specify the Hasher used for keys of type K.
func WithHasher[K comparable](h Hasher[K]) option[K] {
	return optionFunc[K](func(c *config[K]) {
		c.hasher = h
	})
}

// WithHashFunc is an option to specify the hash function to use for keys of
// type K.
func WithHashFunc[K comparable](fn func(key K) uint64) option[K] {
	return WithHasher[K](HashFunc[K](fn))
}

// WithEquality is an option to specify how keys are compared. It must be
// consistent with the Hasher: keys that are equal must hash identically.
func WithEquality[K comparable](e Equality[K]) option[K] {
	return optionFunc[K](func(c *config[K]) {
		c.equal = e
	})
}

// WithEqualFunc is like WithEquality for an ordinary function.
func WithEqualFunc[K comparable](fn func(a, b K) bool) option[K] {
	return WithEquality[K](EqualFunc[K](fn))
}

// WithMaxCapacity is an option to limit the number of buckets a table may
// allocate. A resize that would exceed it fails with ErrCapacity.
func WithMaxCapacity[K comparable](n int) option[K] {
	return optionFunc[K](func(c *config[K]) {
		if n <= 0 {
			c.maxCapacity = 0
			return
		}
		c.maxCapacity = uintptr(n)
	})
}

// WithLogger is an option to specify the logger used to report resizes,
// compactions and restores at debug level.
func WithLogger[K comparable](logger *zap.Logger) option[K] {
	return optionFunc[K](func(c *config[K]) {
		c.logger = logger
	})
}

func makeConfig[K comparable](options []option[K]) config[K] {
	c := config[K]{
		maxLoad:     DefaultMaxLoadFactor,
		maxCapacity: defaultMaxCapacity,
	}
	for _, op := range options {
		op.apply(&c)
	}
	if err := c.validate(); err != nil {
		panic(err)
	}
	if c.hasher == nil {
		c.hasher = makeComparableHasher[K]()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

func (c *config[K]) validate() error {
	if !(c.maxLoad > 0 && c.maxLoad < 1) {
		return errors.Wrapf(ErrInvalidOption, "max load factor %v not in (0, 1)", c.maxLoad)
	}
	if !(c.minLoad >= 0 && c.minLoad < c.maxLoad/2) {
		return errors.Wrapf(ErrInvalidOption,
			"min load factor %v not in [0, %v)", c.minLoad, c.maxLoad/2)
	}
	if c.maxCapacity < groupSize {
		return errors.Wrapf(ErrInvalidOption,
			"max capacity %d below the minimum of %d", c.maxCapacity, groupSize)
	}
	return nil
}
