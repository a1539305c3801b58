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

// Package kmer holds the base-code table and the rolling arithmetic shared
// by the sequence parser and the counting pipeline: 2-bit base encoding,
// forward/reverse-complement k-mer rolling, and canonical selection.
package kmer

// Code is a 2-bit base code, or one of the two sentinels below.
type Code int8

const (
	CodeA Code = 0
	CodeC Code = 1
	CodeG Code = 2
	CodeT Code = 3

	// Ignore marks a byte that contributes nothing to the rolling k-mer
	// (line breaks) and should be skipped without resetting state.
	Ignore Code = -1
	// Reset marks a byte that cannot extend the current k-mer (anything
	// that isn't A/C/G/T, upper or lower case) and forces the rolling
	// window to restart from empty.
	Reset Code = -2
)

// codes maps every possible input byte to its Code. Built once at package
// init from the same four-symbol alphabet the original engine recognized.
var codes [256]Code

func init() {
	for i := range codes {
		codes[i] = Reset
	}
	codes['\n'] = Ignore

	codes['A'] = CodeA
	codes['a'] = CodeA
	codes['C'] = CodeC
	codes['c'] = CodeC
	codes['G'] = CodeG
	codes['g'] = CodeG
	codes['T'] = CodeT
	codes['t'] = CodeT
}

// CodeOf returns the Code for an input byte.
func CodeOf(b byte) Code {
	return codes[b]
}

// Mask returns the bitmask covering the low 2*k bits of a k-mer of length k.
// k must be in [1, 32]; k==32 returns ^uint64(0).
func Mask(k int) uint64 {
	if k >= 32 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(2*k)) - 1
}

// Roll appends code c to kmer (shifting out the oldest base) and returns the
// updated k-mer, masked to 2*k bits.
func Roll(kmer uint64, c Code, k int) uint64 {
	return ((kmer << 2) | uint64(c)) & Mask(k)
}

// RollComplement appends the complement of code c to the reverse-complement
// accumulator rkmer (shifting it the opposite way from Roll) and returns the
// updated value, masked to 2*k bits.
func RollComplement(rkmer uint64, c Code, k int) uint64 {
	lshift := uint(2 * (k - 1))
	return (rkmer >> 2) | ((uint64(3) - uint64(c)) << lshift)
}

// Canonical returns the lexicographically smaller of kmer and its
// precomputed reverse complement rkmer.
func Canonical(kmer, rkmer uint64) uint64 {
	if rkmer < kmer {
		return rkmer
	}
	return kmer
}

// ReverseComplement computes the reverse complement of a k-mer from
// scratch, independent of any rolling accumulator, for a key that was not
// produced by rolling.
func ReverseComplement(kmer uint64, k int) uint64 {
	var rc uint64
	for i := 0; i < k; i++ {
		base := kmer & 3
		kmer >>= 2
		rc = (rc << 2) | (3 - base)
	}
	return rc
}
