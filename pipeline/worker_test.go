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

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosketches/kmercount/iha"
	"github.com/biosketches/kmercount/kmer"
)

func newTestTable(t *testing.T, k int) *iha.Table {
	t.Helper()
	tab, err := iha.New(iha.Config{K: k, LgSize: 2 * k, ValueBits: 32, MaxReprobe: 32, Seed: 42})
	require.NoError(t, err)
	return tab
}

func tableCounts(t *testing.T, tab *iha.Table) map[uint64]uint64 {
	t.Helper()
	out := make(map[uint64]uint64)
	for rec := range tab.Iterate() {
		out[rec.Key] += rec.Value
	}
	return out
}

func TestWorkerCountsSingleKmer(t *testing.T) {
	const k = 3
	tab := newTestTable(t, k)
	pool := NewPool(2, 64, false)
	w := NewWorker(pool, tab, k, false, false, 0)

	buf := <-pool.free
	n := copy(buf.Seq, "ACGT") // two overlapping 3-mers: ACG, CGT
	buf.Len = n
	pool.ready <- buf
	pool.ready <- nil

	require.NoError(t, w.Run(context.Background()))

	var acg, cgt uint64 = 0, 0
	for i := 0; i < k; i++ {
		acg = kmer.Roll(acg, kmer.CodeOf("ACG"[i]), k)
		cgt = kmer.Roll(cgt, kmer.CodeOf("CGT"[i]), k)
	}

	counts := tableCounts(t, tab)
	assert.Equal(t, uint64(1), counts[acg])
	assert.Equal(t, uint64(1), counts[cgt])
}

func TestWorkerResetsOnNonACGT(t *testing.T) {
	const k = 3
	tab := newTestTable(t, k)
	pool := NewPool(2, 64, false)
	w := NewWorker(pool, tab, k, false, false, 0)

	buf := <-pool.free
	// "AC" then a reset byte then "GT" never forms a full k-mer.
	n := copy(buf.Seq, "ACNGT")
	buf.Len = n
	pool.ready <- buf
	pool.ready <- nil

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, tableCounts(t, tab))
}

func TestWorkerCanonicalPicksSmaller(t *testing.T) {
	const k = 3
	tab := newTestTable(t, k)
	pool := NewPool(2, 64, false)
	w := NewWorker(pool, tab, k, true, false, 0)

	buf := <-pool.free
	n := copy(buf.Seq, "ACG")
	buf.Len = n
	pool.ready <- buf
	pool.ready <- nil

	require.NoError(t, w.Run(context.Background()))

	var fwd uint64
	for i := 0; i < k; i++ {
		fwd = kmer.Roll(fwd, kmer.CodeOf("ACG"[i]), k)
	}
	rev := kmer.ReverseComplement(fwd, k)
	want := kmer.Canonical(fwd, rev)

	counts := tableCounts(t, tab)
	assert.Equal(t, uint64(1), counts[want])
	assert.Len(t, counts, 1)
}

func TestWorkerQuakeWeightsByQuality(t *testing.T) {
	const k = 2
	tab := newTestTable(t, k)
	pool := NewPool(2, 64, true)
	w := NewWorker(pool, tab, k, false, true, '!')

	buf := <-pool.free
	n := copy(buf.Seq, "AC")
	buf.Len = n
	// Phred+33 quality 40 ('I') for both bases: near-certain basecall.
	copy(buf.Qual, []byte{'I', 'I'})
	pool.ready <- buf
	pool.ready <- nil

	require.NoError(t, w.Run(context.Background()))

	var ac uint64
	for i := 0; i < k; i++ {
		ac = kmer.Roll(ac, kmer.CodeOf("AC"[i]), k)
	}
	counts := tableCounts(t, tab)
	want := kmer.ScaleWeight(kmer.OneMinusErrorProb('I', '!') * kmer.OneMinusErrorProb('I', '!'))
	assert.Equal(t, want, counts[ac])
}
