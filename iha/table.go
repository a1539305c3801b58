/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package iha implements the invertible hash array: a lock-free, open-
// addressed hash table keyed by k-mer, where the key is never stored
// directly. Each slot holds the high bits of an invertible hash of the
// key (the low bits select the bucket) plus a count, and the original
// key is reconstructed on iteration by inverting the hash.
package iha

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math/bits"
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/twmb/murmur3"

	"github.com/biosketches/kmercount/rbm"
)

// Table is a fixed-capacity, lock-free open-addressed hash table over
// 2k-bit k-mers. Size is always a power of two.
type Table struct {
	k          int
	lgSize     int
	maxReprobe int
	layout     layout
	matrix     *rbm.Matrix
	inverse    *rbm.Matrix
	reprobe    []uint64
	bucketMask uint64
	slab       *Slab
	occupied   atomic.Int64
}

// Config collects the parameters needed to build a Table.
type Config struct {
	K          int    // k-mer length; the matrix is square over 2*K bits
	LgSize     int    // table has 2^LgSize slots
	ValueBits  int    // width of the per-slot count field
	MaxReprobe int    // reprobe chain length before TableFull
	Seed       uint64 // seeds both the invertible matrix and the reprobe table
	UseMmap    bool   // back the slab with an anonymous mmap instead of the heap
}

// New builds a Table from cfg, constructing a fresh random invertible
// matrix over GF(2) sized to the k-mer's bit width.
func New(cfg Config) (*Table, error) {
	r := 2 * cfg.K
	if r == 0 || r > 64 {
		return nil, fmt.Errorf("iha: invalid k=%d (2k must be in [1,64])", cfg.K)
	}
	if cfg.LgSize <= 0 || cfg.LgSize > r {
		return nil, fmt.Errorf("iha: invalid lgSize=%d for k=%d", cfg.LgSize, cfg.K)
	}

	m, err := rbm.New(r, r)
	if err != nil {
		return nil, fmt.Errorf("iha: building hash matrix: %w", err)
	}
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], cfg.Seed)
	lo, hi := murmur3.Sum128(seedBytes[:])
	rng := rand.New(rand.NewSource(int64(lo ^ hi)))
	inverse := m.RandomizePseudoInverse(rng)

	storedBits := uint(r - cfg.LgSize)
	reprobeBits := uint(bits.Len(uint(cfg.MaxReprobe)))
	lay := layout{valueBits: uint(cfg.ValueBits), storedBits: storedBits, reprobeBits: reprobeBits}
	if !lay.fits() {
		return nil, fmt.Errorf("iha: value_bits(%d)+stored_bits(%d)+reprobe_bits(%d) exceed slot width",
			cfg.ValueBits, storedBits, reprobeBits)
	}

	var slab *Slab
	size := 1 << cfg.LgSize
	if cfg.UseMmap {
		slab, err = newMmapSlab(size)
		if err != nil {
			return nil, err
		}
	} else {
		slab = newHeapSlab(size)
	}

	return &Table{
		k:          cfg.K,
		lgSize:     cfg.LgSize,
		maxReprobe: cfg.MaxReprobe,
		layout:     lay,
		matrix:     m,
		inverse:    inverse,
		reprobe:    reprobeTable(cfg.Seed, cfg.MaxReprobe),
		bucketMask: uint64(size - 1),
		slab:       slab,
	}, nil
}

// reprobeTable derives a deterministic stride sequence from seed. Offset 0
// is always the bucket itself (a direct hit); later offsets are distinct
// murmur3-derived strides, persisted as part of the segment/compacted
// header so a reader can replay the same probe sequence (see chash).
func reprobeTable(seed uint64, maxReprobe int) []uint64 {
	table := make([]uint64, maxReprobe)
	for i := 1; i < maxReprobe; i++ {
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], seed)
		binary.LittleEndian.PutUint64(buf[8:16], uint64(i))
		lo, _ := murmur3.Sum128(buf[:])
		table[i] = lo | 1 // force odd so it always changes the bucket
	}
	return table
}

// Hash returns the matrix's invertible hash of key, a permutation of its
// 2k bits.
func (t *Table) Hash(key uint64) uint64 {
	return t.matrix.ApplyRef([]uint64{key})
}

// Unhash inverts Hash.
func (t *Table) Unhash(h uint64) uint64 {
	return t.inverse.ApplyRef([]uint64{h})
}

// Add upserts delta into key's count, following the probe-claim-or-
// increment protocol: claim an empty slot via CAS, or
// fetch-add into a matching committed slot, or advance to the next
// reprobe position on a collision with a different key. Returns
// TableFullError when the reprobe chain is exhausted.
func (t *Table) Add(key uint64, delta uint64) error {
	h := t.Hash(key)
	bucket0 := h & t.bucketMask
	stored := h >> uint(t.lgSize)

	for probe := 0; probe < t.maxReprobe; probe++ {
		bucket := (bucket0 + t.reprobe[probe]) & t.bucketMask
		slot := t.slab.at(int(bucket))

		for {
			old := slot.Load()
			if !isPresent(old) {
				word := t.layout.build(stored, probe, delta&t.layout.valueMask())
				if delta <= t.layout.valueMask() && slot.CompareAndSwap(old, word) {
					t.occupied.Add(1)
					return nil
				}
				if isPresent(slot.Load()) {
					break // someone else claimed it first; reprobe
				}
				continue // lost the race against ourselves; retry this slot
			}
			if isLocked(old) {
				runtime.Gosched()
				continue
			}
			if isContinuation(old) || t.layout.extractStored(old) != stored || t.layout.extractReprobe(old) != probe {
				break // collision with a different key; advance the probe
			}

			value := t.layout.extractValue(old)
			sum := value + delta
			if sum <= t.layout.valueMask() {
				newWord := t.layout.withValue(old, sum)
				if slot.CompareAndSwap(old, newWord) {
					return nil
				}
				continue
			}

			// Value overflow: lock this slot, chain the remainder into the
			// next reprobe position, then release the lock.
			locked := t.layout.withLocked(old, true)
			if !slot.CompareAndSwap(old, locked) {
				continue
			}
			remainder := sum - t.layout.valueMask()
			if probe+1 < t.maxReprobe {
				overflowBucket := (bucket0 + t.reprobe[probe+1]) & t.bucketMask
				t.addOverflow(overflowBucket, remainder)
			}
			final := t.layout.withValue(locked, t.layout.valueMask())
			final = t.layout.withValueLarge(final, true)
			final = t.layout.withLocked(final, false)
			slot.Store(final)
			return nil
		}
	}
	return &TableFullError{Key: key, Reprobe: t.maxReprobe}
}

// addOverflow deposits a value-large continuation amount into bucket,
// creating the slot if necessary or fetch-adding if one already chains
// there. Continuation slots are addressed purely by bucket (their stored
// bits are left zero) since they are never independently reconstructed:
// iteration folds them back into the committed slot that spilled into
// them via isValueLarge.
func (t *Table) addOverflow(bucket uint64, value uint64) {
	slot := t.slab.at(int(bucket))
	for {
		old := slot.Load()
		if !isPresent(old) {
			word := t.layout.build(0, 0, value&t.layout.valueMask())
			word = t.layout.withContinuation(word, true)
			if slot.CompareAndSwap(old, word) {
				t.occupied.Add(1)
				return
			}
			continue
		}
		v := t.layout.extractValue(old)
		newWord := t.layout.withValue(old, (v+value)&t.layout.valueMask())
		if slot.CompareAndSwap(old, newWord) {
			return
		}
	}
}

// Reset zeroes the slab for spill-and-continue: the dumper has already
// drained every committed slot, so counting can resume into a clean table.
func (t *Table) Reset() {
	t.slab.reset()
	t.occupied.Store(0)
}

// Close releases any OS resources held by the slab.
func (t *Table) Close() error {
	return t.slab.Close()
}

// Len returns the slot count (2^LgSize).
func (t *Table) Len() int { return t.slab.len() }

// Occupancy returns the number of slab slots currently holding a
// committed value (including overflow-continuation slots), tracked
// incrementally as Add claims new slots and reset to zero by Reset.
func (t *Table) Occupancy() int64 { return t.occupied.Load() }

// LoadFactor returns Occupancy divided by Len, the fraction of slots
// currently in use.
func (t *Table) LoadFactor() float64 {
	return float64(t.occupied.Load()) / float64(t.slab.len())
}

// KeyBits returns the bit width of keys stored in this table (2*K).
func (t *Table) KeyBits() int { return t.matrix.R() }

// K returns the configured k-mer length.
func (t *Table) K() int { return t.k }

// Matrix returns the table's invertible hash matrix, for serialization
// into a compacted/segment header for key-reconstruction auditing.
func (t *Table) Matrix() *rbm.Matrix { return t.matrix }

// ReprobeTable returns the table's derived reprobe stride sequence, for
// persisting alongside a spilled segment or compacted file so a reader
// can replay the exact same probe sequence without recomputing it from a
// seed.
func (t *Table) ReprobeTable() []uint64 { return t.reprobe }

// Record is one reconstructed (key, count) pair yielded by Iterate.
type Record struct {
	Key   uint64
	Value uint64
}

// Iterate walks every committed slot in index order, reconstructing the
// original key from (bucket index, stored high bits, reprobe offset) via
// the inverse matrix. The table must be quiescent (no concurrent Add
// calls) for the duration of iteration.
func (t *Table) Iterate() iter.Seq[Record] {
	return t.IterateRange(0, t.slab.len())
}

// IterateRange behaves like Iterate but restricts the walk to slot indices
// [lo, hi), letting the dumper shard a quiescent table's slot range across
// worker goroutines without contention between shards.
func (t *Table) IterateRange(lo, hi int) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for bucket := lo; bucket < hi; bucket++ {
			word := t.slab.at(bucket).Load()
			if !isPresent(word) || isLocked(word) || isContinuation(word) {
				continue
			}
			stored := t.layout.extractStored(word)
			offset := t.layout.extractReprobe(word)
			bucket0 := (uint64(bucket) - t.reprobe[offset]) & t.bucketMask
			h := (stored << uint(t.lgSize)) | bucket0
			key := t.Unhash(h)

			value := t.layout.extractValue(word)
			if isValueLarge(word) && offset+1 < t.maxReprobe {
				overflowBucket := (bucket0 + t.reprobe[offset+1]) & t.bucketMask
				value += t.layout.extractValue(t.slab.at(int(overflowBucket)).Load())
			}

			if !yield(Record{Key: key, Value: value}) {
				return
			}
		}
	}
}
