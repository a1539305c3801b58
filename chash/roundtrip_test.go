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

package chash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripRecords(t *testing.T) {
	records := []Record{
		{Key: 1, Value: 1},
		{Key: 5, Value: 100},
		{Key: 9000, Value: 1},
		{Key: 1 << 20, Value: 1 << 10},
	}

	var buf bytes.Buffer
	header := Header{K: 16, KeyBits: 32, ValueBits: 24, RecordCount: uint64(len(records))}
	w, err := NewWriter(&buf, header)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	reader, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), reader.Header().K)

	var got []Record
	for r := range reader.Records() {
		got = append(got, r)
	}
	assert.Equal(t, records, got)
}

func TestReaderRejectsCorruptedTrailer(t *testing.T) {
	var buf bytes.Buffer
	header := Header{K: 4, KeyBits: 8, ValueBits: 8, RecordCount: 1}
	w, err := NewWriter(&buf, header)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Key: 1, Value: 1}))
	require.NoError(t, w.Close())

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err = NewReader(bytes.NewReader(corrupted))
	assert.Error(t, err)
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestManyRecordsSpanMultipleBlocks(t *testing.T) {
	const n = blockSize*2 + 17
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Key: uint64(i), Value: uint64(i % 100)}
	}

	var buf bytes.Buffer
	header := Header{K: 16, KeyBits: 32, ValueBits: 16, RecordCount: uint64(n)}
	w, err := NewWriter(&buf, header)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	reader, err := NewReader(&buf)
	require.NoError(t, err)
	var got []Record
	for r := range reader.Records() {
		got = append(got, r)
	}
	assert.Equal(t, records, got)
}
