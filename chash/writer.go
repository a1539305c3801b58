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
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Record is one (key, value) pair accepted by Writer, key_bits and
// value_bits wide respectively.
type Record struct {
	Key   uint64
	Value uint64
}

// blockSize is the number of records grouped behind one record-count
// prefix: a reader can skip whole blocks without decoding them.
const blockSize = 4096

// Writer accepts a sorted stream of records and packs them into the
// compacted/segment file format. Callers must present records in
// non-decreasing key order; Writer does not sort or deduplicate.
type Writer struct {
	w         io.Writer
	keyBits   uint8
	valueBits uint8
	pending   []Record
	digest    *xxhash.Digest
}

// NewWriter writes header and returns a Writer ready to accept records.
// header.RecordCount must already reflect the total the caller intends to
// write.
func NewWriter(w io.Writer, header Header) (*Writer, error) {
	if err := writeHeader(w, header); err != nil {
		return nil, err
	}
	return &Writer{
		w:         w,
		keyBits:   uint8(header.KeyBits),
		valueBits: uint8(header.ValueBits),
		digest:    xxhash.New(),
	}, nil
}

// Write appends one record, flushing a full block to the underlying
// writer as soon as blockSize records have accumulated.
func (wr *Writer) Write(rec Record) error {
	wr.pending = append(wr.pending, rec)
	if len(wr.pending) >= blockSize {
		return wr.flush()
	}
	return nil
}

// Flush forces any pending records out as a (possibly short) block,
// without closing the stream. A segment writer calls this at bucket
// boundaries so the per-bucket byte-offset index it builds on the side
// always points at a block start.
func (wr *Writer) Flush() error {
	return wr.flush()
}

func (wr *Writer) flush() error {
	if len(wr.pending) == 0 {
		return nil
	}
	recordBits := int(wr.keyBits) + int(wr.valueBits)
	buf := make([]byte, bitsToBytes(len(wr.pending)*recordBits))

	idx, offset := 0, uint8(0)
	for _, rec := range wr.pending {
		idx, offset = packBits(rec.Key, wr.keyBits, buf, idx, offset)
		idx, offset = packBits(rec.Value, wr.valueBits, buf, idx, offset)
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(wr.pending)))
	if _, err := wr.w.Write(countBuf[:]); err != nil {
		return err
	}
	if _, err := wr.w.Write(buf); err != nil {
		return err
	}
	wr.digest.Write(countBuf[:])
	wr.digest.Write(buf)

	wr.pending = wr.pending[:0]
	return nil
}

// Close flushes any pending block and appends the xxhash64 trailer over
// every block written.
func (wr *Writer) Close() error {
	if err := wr.flush(); err != nil {
		return err
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], wr.digest.Sum64())
	_, err := wr.w.Write(trailer[:])
	return err
}
