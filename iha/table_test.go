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

package iha

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, k int) *Table {
	t.Helper()
	table, err := New(Config{
		K:          k,
		LgSize:     4,
		ValueBits:  20,
		MaxReprobe: 64,
		Seed:       12345,
	})
	require.NoError(t, err)
	return table
}

func TestHashUnhashRoundTrip(t *testing.T) {
	table := newTestTable(t, 8)
	for _, key := range []uint64{0, 1, 0xABCD, 0xFFFFFFFF} {
		h := table.Hash(key)
		assert.Equal(t, key, table.Unhash(h))
	}
}

func TestAddAndIterateSingleKey(t *testing.T) {
	table := newTestTable(t, 8)
	require.NoError(t, table.Add(42, 3))
	require.NoError(t, table.Add(42, 4))

	var got []Record
	for rec := range table.Iterate() {
		got = append(got, rec)
	}
	require.Len(t, got, 1)
	assert.Equal(t, uint64(42), got[0].Key)
	assert.Equal(t, uint64(7), got[0].Value)
}

func TestAddDistinctKeys(t *testing.T) {
	table := newTestTable(t, 8)
	keys := []uint64{1, 2, 3, 100, 255}
	for _, k := range keys {
		require.NoError(t, table.Add(k, 1))
	}

	counts := map[uint64]uint64{}
	for rec := range table.Iterate() {
		counts[rec.Key] = rec.Value
	}
	for _, k := range keys {
		assert.Equal(t, uint64(1), counts[k])
	}
}

func TestConcurrentAddSameKey(t *testing.T) {
	table := newTestTable(t, 8)
	const producers = 16
	const perProducer = 50

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				require.NoError(t, table.Add(7, 1))
			}
		}()
	}
	wg.Wait()

	var total uint64
	for rec := range table.Iterate() {
		total += rec.Value
	}
	assert.Equal(t, uint64(producers*perProducer), total)
}

func TestResetClearsTable(t *testing.T) {
	table := newTestTable(t, 8)
	require.NoError(t, table.Add(9, 1))
	table.Reset()

	var count int
	for range table.Iterate() {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestOccupancyTracksDistinctSlotsClaimed(t *testing.T) {
	table := newTestTable(t, 8)
	assert.Equal(t, int64(0), table.Occupancy())

	require.NoError(t, table.Add(1, 1))
	require.NoError(t, table.Add(2, 1))
	assert.Equal(t, int64(2), table.Occupancy())

	// A repeat key increments the existing slot instead of claiming a new one.
	require.NoError(t, table.Add(1, 1))
	assert.Equal(t, int64(2), table.Occupancy())

	assert.InDelta(t, float64(2)/float64(table.Len()), table.LoadFactor(), 1e-9)
}

func TestResetClearsOccupancy(t *testing.T) {
	table := newTestTable(t, 8)
	require.NoError(t, table.Add(9, 1))
	require.NoError(t, table.Add(10, 1))
	table.Reset()
	assert.Equal(t, int64(0), table.Occupancy())
	assert.Equal(t, float64(0), table.LoadFactor())
}
