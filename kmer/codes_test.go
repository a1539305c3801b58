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

package kmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeA, CodeOf('A'))
	assert.Equal(t, CodeA, CodeOf('a'))
	assert.Equal(t, CodeC, CodeOf('C'))
	assert.Equal(t, CodeG, CodeOf('G'))
	assert.Equal(t, CodeT, CodeOf('T'))
	assert.Equal(t, Ignore, CodeOf('\n'))
	assert.Equal(t, Reset, CodeOf('N'))
	assert.Equal(t, Reset, CodeOf('>'))
}

func TestMask(t *testing.T) {
	assert.Equal(t, uint64(0x3), Mask(1))
	assert.Equal(t, uint64(0xF), Mask(2))
	assert.Equal(t, ^uint64(0), Mask(32))
}

func TestRollProducesSlidingWindows(t *testing.T) {
	// "ACGT" with k=2: rolling windows are AC, CG, GT.
	k := 2
	var kmer uint64
	var windows []uint64
	for _, c := range []Code{CodeA, CodeC, CodeG, CodeT} {
		kmer = Roll(kmer, c, k)
		windows = append(windows, kmer)
	}
	want := []uint64{
		uint64(CodeA)<<2 | uint64(CodeC), // AC, first window only has A then C
		uint64(CodeC)<<2 | uint64(CodeG), // CG
		uint64(CodeG)<<2 | uint64(CodeT), // GT
	}
	assert.Equal(t, want[0], windows[1])
	assert.Equal(t, want[1], windows[2])
	assert.Equal(t, want[2], windows[3])
}

func TestReverseComplementMatchesRolling(t *testing.T) {
	k := 4
	bases := []Code{CodeA, CodeC, CodeG, CodeT}
	var kmer, rkmer uint64
	for _, c := range bases {
		kmer = Roll(kmer, c, k)
		rkmer = RollComplement(rkmer, c, k)
	}
	assert.Equal(t, ReverseComplement(kmer, k), rkmer)
}

func TestCanonicalPicksSmaller(t *testing.T) {
	assert.Equal(t, uint64(1), Canonical(1, 5))
	assert.Equal(t, uint64(1), Canonical(5, 1))
}
