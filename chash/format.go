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

// Package chash implements the compacted hash file format: the final
// merged (key, value) output and the intermediate per-spill segment
// format that shares the same record layout. Both are a small
// little-endian header followed by record-count-prefixed, bit-packed
// record blocks and an xxhash64 trailer.
package chash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biosketches/kmercount/rbm"
)

// Magic identifies a compacted or segment file. Segment files and the
// final compacted file share the same magic and header shape; readers
// distinguish them by context (a segment's records need not be globally
// sorted across segments), not by a format bit.
var Magic = [8]byte{'K', 'M', 'R', 'C', 'N', 'T', '1', 0}

const formatVersion uint32 = 1

// recordCountOffset is the fixed byte offset of the RecordCount field
// within the header: magic(8) + version(4) + K(4) + KeyBits(4) +
// ValueBits(4). A merge that doesn't know its final count up front
// writes a placeholder here and patches it in place via
// PatchRecordCount once the true count is known, the same back-patch
// trick self-describing streaming formats use when the record count
// can't be known before the records themselves are written.
const recordCountOffset = 8 + 4 + 4 + 4 + 4

// PatchRecordCount overwrites the RecordCount field of an already-written
// header in place. w must address the same file NewWriter wrote the
// header to.
func PatchRecordCount(w io.WriterAt, count uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], count)
	_, err := w.WriteAt(buf[:], recordCountOffset)
	return err
}

// Header describes a file's record layout and, when present, the
// invertible hash matrix and reprobe stride table needed to audit or
// reconstruct keys independent of the process that wrote the file.
type Header struct {
	K           uint32
	KeyBits     uint32
	ValueBits   uint32
	RecordCount uint64

	// ValueKind selects how the value field of each record is interpreted:
	// ValueKindCount (plain occurrence counts) or ValueKindWeight (a
	// quality-weighted expected count, fixed-point scaled by WeightScale
	// so it can flow through the same integer Add/sum path as a plain
	// count. One of a small set of tagged variants persisted into the
	// format instead of chosen at compile time.
	ValueKind   ValueKind
	WeightScale uint64

	// Matrix is optional: nil means the file carries no RBM serialization,
	// relying on the reader already knowing the hash in use.
	Matrix *rbm.Matrix

	ReprobeSeed  uint64
	ReprobeTable []uint64
}

// ValueKind distinguishes a plain occurrence count from a fixed-point
// scaled quality-weighted expected count.
type ValueKind uint8

const (
	ValueKindCount ValueKind = iota
	ValueKindWeight
)

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeHeader(w io.Writer, h Header) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeUint32(w, formatVersion); err != nil {
		return err
	}
	if err := writeUint32(w, h.K); err != nil {
		return err
	}
	if err := writeUint32(w, h.KeyBits); err != nil {
		return err
	}
	if err := writeUint32(w, h.ValueBits); err != nil {
		return err
	}
	if err := writeUint64(w, h.RecordCount); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(h.ValueKind)}); err != nil {
		return err
	}
	if err := writeUint64(w, h.WeightScale); err != nil {
		return err
	}

	if h.Matrix == nil {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte{1}); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(h.Matrix.R())); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(h.Matrix.C())); err != nil {
			return err
		}
		for i := 0; i < h.Matrix.C(); i++ {
			if err := writeUint64(w, h.Matrix.Column(i)); err != nil {
				return err
			}
		}
	}

	if err := writeUint64(w, h.ReprobeSeed); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(h.ReprobeTable))); err != nil {
		return err
	}
	for _, stride := range h.ReprobeTable {
		if err := writeUint64(w, stride); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Header{}, err
	}
	if magic != Magic {
		return Header{}, &FormatError{Msg: "bad magic"}
	}
	version, err := readUint32(r)
	if err != nil {
		return Header{}, err
	}
	if version != formatVersion {
		return Header{}, &FormatError{Msg: fmt.Sprintf("unsupported version %d", version)}
	}

	var h Header
	if h.K, err = readUint32(r); err != nil {
		return Header{}, err
	}
	if h.KeyBits, err = readUint32(r); err != nil {
		return Header{}, err
	}
	if h.ValueBits, err = readUint32(r); err != nil {
		return Header{}, err
	}
	if h.RecordCount, err = readUint64(r); err != nil {
		return Header{}, err
	}
	var valueKind [1]byte
	if _, err := io.ReadFull(r, valueKind[:]); err != nil {
		return Header{}, err
	}
	h.ValueKind = ValueKind(valueKind[0])
	if h.WeightScale, err = readUint64(r); err != nil {
		return Header{}, err
	}

	var hasMatrix [1]byte
	if _, err := io.ReadFull(r, hasMatrix[:]); err != nil {
		return Header{}, err
	}
	if hasMatrix[0] == 1 {
		rRows, err := readUint32(r)
		if err != nil {
			return Header{}, err
		}
		cCols, err := readUint32(r)
		if err != nil {
			return Header{}, err
		}
		words := make([]uint64, cCols)
		for i := range words {
			if words[i], err = readUint64(r); err != nil {
				return Header{}, err
			}
		}
		m, err := rbm.FromRaw(words, int(rRows), int(cCols))
		if err != nil {
			return Header{}, fmt.Errorf("chash: decoding header matrix: %w", err)
		}
		h.Matrix = m
	}

	if h.ReprobeSeed, err = readUint64(r); err != nil {
		return Header{}, err
	}
	reprobeCount, err := readUint32(r)
	if err != nil {
		return Header{}, err
	}
	h.ReprobeTable = make([]uint64, reprobeCount)
	for i := range h.ReprobeTable {
		if h.ReprobeTable[i], err = readUint64(r); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}
