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

package rbm

import "math/rand"

// Every r x c matrix A splits into a left block A_L (the first c-r
// columns) and a right block A_R (the last r columns, square). Pseudo-
// multiplication, pseudo-rank and pseudo-inverse are all defined in terms
// of ordinary GF(2) linear algebra on that right square block:
//
//	(A pseudomult B)_R = A_R * B_R            (ordinary r x r product)
//	(A pseudomult B)_L = A_L XOR A_R * B_L
//
// The low-identity matrix LI = [0 | I] is the two-sided identity of this
// operation, pseudo-rank is (c-r) + rank(A_R), and pseudo-inverse exists
// exactly when A_R is an invertible square matrix, in which case
// B_R = A_R^-1 and B_L = A_R^-1 * A_L.

// mulSquareVec applies an r x r matrix (given as its r columns) to an
// r-bit vector packed into a single word.
func mulSquareVec(cols []uint64, vec uint64) uint64 {
	var acc uint64
	for i, col := range cols {
		if (vec>>uint(i))&1 != 0 {
			acc ^= col
		}
	}
	return acc
}

// PseudoMultiplication returns m pseudomult other. Both matrices must have
// identical dimensions; neither operand is mutated.
func (m *Matrix) PseudoMultiplication(other *Matrix) (*Matrix, error) {
	if m.r != other.r || m.c != other.c {
		return nil, &DomainError{Msg: "pseudo_multiplication: dimension mismatch"}
	}
	r, c := m.r, m.c
	split := c - r
	aR := m.cols[split:]
	bL := other.cols[:split]
	bR := other.cols[split:]

	result := &Matrix{r: r, c: c, cols: make([]uint64, c)}
	for j := 0; j < split; j++ {
		result.cols[j] = m.cols[j] ^ mulSquareVec(aR, bL[j])
	}
	for j := 0; j < r; j++ {
		result.cols[split+j] = mulSquareVec(aR, bR[j])
	}
	return result, nil
}

// squareRankAndInverse Gauss-Jordan eliminates the r x r block given by
// cols (r columns, each an r-bit vector) and returns its rank and, when
// full rank, its inverse (also as r columns).
func squareRankAndInverse(cols []uint64, r int) (rank int, inv []uint64, invertible bool) {
	// Work in row form: rowA[i] is row i of the block, rowI[i] is row i of
	// the accumulating inverse (starts as the identity).
	rowA := make([]uint64, r)
	rowI := make([]uint64, r)
	for i := 0; i < r; i++ {
		var a uint64
		for j, col := range cols {
			if (col>>uint(i))&1 != 0 {
				a |= uint64(1) << uint(j)
			}
		}
		rowA[i] = a
		rowI[i] = uint64(1) << uint(i)
	}

	pivotRow := 0
	for col := 0; col < r; col++ {
		// Find a row at or below pivotRow with this column's bit set.
		sel := -1
		for i := pivotRow; i < r; i++ {
			if (rowA[i]>>uint(col))&1 != 0 {
				sel = i
				break
			}
		}
		if sel == -1 {
			continue // this column contributes no new pivot
		}
		rowA[pivotRow], rowA[sel] = rowA[sel], rowA[pivotRow]
		rowI[pivotRow], rowI[sel] = rowI[sel], rowI[pivotRow]
		for i := 0; i < r; i++ {
			if i == pivotRow {
				continue
			}
			if (rowA[i]>>uint(col))&1 != 0 {
				rowA[i] ^= rowA[pivotRow]
				rowI[i] ^= rowI[pivotRow]
			}
		}
		pivotRow++
	}
	rank = pivotRow
	if rank < r {
		return rank, nil, false
	}

	inv = make([]uint64, r)
	for j := 0; j < r; j++ {
		var col uint64
		for i := 0; i < r; i++ {
			if (rowI[i]>>uint(j))&1 != 0 {
				col |= uint64(1) << uint(i)
			}
		}
		inv[j] = col
	}
	return rank, inv, true
}

// PseudoRank returns (c-r) plus the ordinary GF(2) rank of the right r x r
// block. It is c exactly when that block is invertible.
func (m *Matrix) PseudoRank() int {
	split := m.c - m.r
	rank, _, _ := squareRankAndInverse(m.cols[split:], m.r)
	return split + rank
}

// PseudoInverse returns B such that B.PseudoMultiplication(m) and
// m.PseudoMultiplication(B) are both low-identity. Fails with a
// DomainError when PseudoRank() < C(), i.e. the right r x r block is
// singular.
func (m *Matrix) PseudoInverse() (*Matrix, error) {
	r, c := m.r, m.c
	split := c - r
	aR := m.cols[split:]
	_, invR, ok := squareRankAndInverse(aR, r)
	if !ok {
		return nil, &DomainError{Msg: "pseudo_inverse: singular matrix"}
	}

	result := &Matrix{r: r, c: c, cols: make([]uint64, c)}
	for j := 0; j < split; j++ {
		result.cols[j] = mulSquareVec(invR, m.cols[j])
	}
	copy(result.cols[split:], invR)
	return result, nil
}

// RandomizePseudoInverse repeatedly randomizes m from rng until it reaches
// full pseudo-rank (c), then returns its pseudo-inverse.
func (m *Matrix) RandomizePseudoInverse(rng *rand.Rand) *Matrix {
	for {
		m.Randomize(rng)
		if m.PseudoRank() == m.c {
			inv, err := m.PseudoInverse()
			if err == nil {
				return inv
			}
		}
	}
}
