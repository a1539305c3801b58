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

// Package rbm implements rectangular binary matrices over GF(2): the
// invertible linear map the counting engine uses to turn a 2k-bit k-mer
// into an r-bit table fingerprint, plus the pseudo-arithmetic (pseudo-
// multiplication, pseudo-rank, pseudo-inverse) used to compose and invert
// those maps.
package rbm

import (
	"math/bits"
	"math/rand"

	"github.com/twmb/murmur3"
)

// Matrix is an r x c matrix over GF(2), r <= 64, stored column-major: each
// column is one uint64 whose low r bits are the column vector and whose
// remaining bits are always zero.
type Matrix struct {
	r, c int
	cols []uint64
}

func checkDims(r, c int) error {
	if r == 0 {
		return &OutOfRangeError{R: r, C: c, Msg: "r must be at least 1"}
	}
	if r > 64 {
		return &OutOfRangeError{R: r, C: c, Msg: "r must be at most 64"}
	}
	if c == 0 {
		return &OutOfRangeError{R: r, C: c, Msg: "c must be at least 1"}
	}
	if c < r {
		return &OutOfRangeError{R: r, C: c, Msg: "c must be at least r"}
	}
	return nil
}

// New returns a zero r x c matrix.
func New(r, c int) (*Matrix, error) {
	if err := checkDims(r, c); err != nil {
		return nil, err
	}
	return &Matrix{r: r, c: c, cols: make([]uint64, c)}, nil
}

// FromRaw returns an r x c matrix whose column i is words[i], masked to the
// low r bits.
func FromRaw(words []uint64, r, c int) (*Matrix, error) {
	if err := checkDims(r, c); err != nil {
		return nil, err
	}
	if len(words) != c {
		return nil, &OutOfRangeError{R: r, C: c, Msg: "len(words) must equal c"}
	}
	mask := lowMask(r)
	cols := make([]uint64, c)
	for i, w := range words {
		cols[i] = w & mask
	}
	return &Matrix{r: r, c: c, cols: cols}, nil
}

func lowMask(r int) uint64 {
	if r >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(r)) - 1
}

// R returns the row count.
func (m *Matrix) R() int { return m.r }

// C returns the column count.
func (m *Matrix) C() int { return m.c }

// Column returns column i.
func (m *Matrix) Column(i int) uint64 { return m.cols[i] }

// Clone returns an independent copy.
func (m *Matrix) Clone() *Matrix {
	cols := make([]uint64, len(m.cols))
	copy(cols, m.cols)
	return &Matrix{r: m.r, c: m.c, cols: cols}
}

// Equal reports whether m and other have the same dimensions and columns.
func (m *Matrix) Equal(other *Matrix) bool {
	if m.r != other.r || m.c != other.c {
		return false
	}
	for i := range m.cols {
		if m.cols[i] != other.cols[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether every column is zero.
func (m *Matrix) IsZero() bool {
	for _, col := range m.cols {
		if col != 0 {
			return false
		}
	}
	return true
}

// SetLowIdentity overwrites m in place so that its rightmost r columns form
// the r x r identity (column c-1 is bit 0, each column leftward shifted one
// bit further) and the remaining c-r columns are zero.
func (m *Matrix) SetLowIdentity() {
	for i := 0; i < m.c-m.r; i++ {
		m.cols[i] = 0
	}
	for i := 0; i < m.r; i++ {
		m.cols[m.c-1-i] = uint64(1) << uint(i)
	}
}

// IsLowIdentity reports whether m is exactly in low-identity form.
func (m *Matrix) IsLowIdentity() bool {
	for i := 0; i < m.c-m.r; i++ {
		if m.cols[i] != 0 {
			return false
		}
	}
	for i := 0; i < m.r; i++ {
		if m.cols[m.c-1-i] != uint64(1)<<uint(i) {
			return false
		}
	}
	return true
}

// Randomize fills every column with a random value drawn from rng, masked
// to the low r bits.
func (m *Matrix) Randomize(rng *rand.Rand) {
	mask := lowMask(m.r)
	for i := range m.cols {
		m.cols[i] = rng.Uint64() & mask
	}
}

// RandomizeSeed derives a deterministic random source from a byte seed via
// murmur3 and randomizes m from it. Grounded on cpc's BitMatrix, which
// seeds murmur3 the same way to drive its own randomized bit matrix.
func (m *Matrix) RandomizeSeed(seed []byte) {
	lo, hi := murmur3.Sum128(seed)
	src := rand.NewSource(int64(lo ^ hi))
	m.Randomize(rand.New(src))
}

// bitAt reports bit i of a multi-word vector, word 0 holding bits [0,64).
func bitAt(v []uint64, i int) bool {
	return (v[i/64]>>uint(i%64))&1 != 0
}

// ApplyRef computes the matrix-vector product: the XOR of every column i
// for which bit i of v is set. This is the reference implementation; the
// other two variants must always agree with it.
func (m *Matrix) ApplyRef(v []uint64) uint64 {
	var acc uint64
	for i := 0; i < m.c; i++ {
		if bitAt(v, i) {
			acc ^= m.cols[i]
		}
	}
	return acc
}

// ApplyPacked computes the same product by walking only the set bits of
// each input word (via trailing-zero scan), skipping runs of zero columns
// instead of visiting every column index. Functionally equivalent to
// ApplyRef, structured the way a SIMD lane-skipping pass would be.
func (m *Matrix) ApplyPacked(v []uint64) uint64 {
	var acc uint64
	nbWords := (m.c + 63) / 64
	for wi := 0; wi < nbWords && wi < len(v); wi++ {
		word := v[wi]
		base := wi * 64
		for word != 0 {
			b := bits.TrailingZeros64(word)
			colIdx := base + b
			if colIdx < m.c {
				acc ^= m.cols[colIdx]
			}
			word &= word - 1
		}
	}
	return acc
}

// ApplyU128 computes the same product by folding columns two at a time
// into a single combined value per pair before XOR-ing it into the
// accumulator, mirroring a 128-bit-lane paired-word implementation.
func (m *Matrix) ApplyU128(v []uint64) uint64 {
	var acc uint64
	i := 0
	for ; i+1 < m.c; i += 2 {
		b0 := bitAt(v, i)
		b1 := bitAt(v, i+1)
		var pair uint64
		switch {
		case b0 && b1:
			pair = m.cols[i] ^ m.cols[i+1]
		case b0:
			pair = m.cols[i]
		case b1:
			pair = m.cols[i+1]
		}
		acc ^= pair
	}
	if i < m.c && bitAt(v, i) {
		acc ^= m.cols[i]
	}
	return acc
}
