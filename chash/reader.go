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
	"iter"

	"github.com/cespare/xxhash/v2"
)

// Reader validates a compacted or segment file's magic and checksum up
// front, then yields its records as a finite, non-restartable sequence.
type Reader struct {
	header    Header
	keyBits   uint8
	valueBits uint8
	body      []byte // block bytes, trailer already stripped and verified
}

// NewReader reads and validates header, magic and trailer checksum before
// returning. body is read fully into memory: Records yields a finite,
// non-restartable sequence over it.
func NewReader(r io.Reader) (*Reader, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, &IOError{Err: err}
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Err: err}
	}
	if len(rest) < 8 {
		return nil, &FormatError{Msg: "truncated trailer"}
	}
	body := rest[:len(rest)-8]
	wantSum := binary.LittleEndian.Uint64(rest[len(rest)-8:])
	gotSum := xxhash.Sum64(body)
	if gotSum != wantSum {
		return nil, &FormatError{Msg: "checksum mismatch"}
	}

	return &Reader{
		header:    header,
		keyBits:   uint8(header.KeyBits),
		valueBits: uint8(header.ValueBits),
		body:      body,
	}, nil
}

// Header returns the decoded file header.
func (rd *Reader) Header() Header { return rd.header }

// Records yields every record in file order. Keys are expected to be
// strictly ascending for a compacted file; Records does not
// itself enforce that, callers that care (round-trip tests) can check.
func (rd *Reader) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		recordBits := rd.keyBits + rd.valueBits
		pos := 0
		remaining := rd.header.RecordCount
		for remaining > 0 {
			if pos+4 > len(rd.body) {
				return
			}
			blockCount := binary.LittleEndian.Uint32(rd.body[pos : pos+4])
			pos += 4
			idx, offset := pos, uint8(0)
			for i := uint32(0); i < blockCount; i++ {
				var key, value uint64
				key, idx, offset = unpackBits(rd.keyBits, rd.body, idx, offset)
				value, idx, offset = unpackBits(rd.valueBits, rd.body, idx, offset)
				if !yield(Record{Key: key, Value: value}) {
					return
				}
			}
			blockBytes := bitsToBytes(int(blockCount) * int(recordBits))
			pos += blockBytes
			remaining -= uint64(blockCount)
		}
	}
}
