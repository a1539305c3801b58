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

// Package dump drains the invertible hash array into sorted on-disk
// segments ("spill and continue") and performs the final k-way merge of
// those segments into a compacted output.
package dump

import (
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/biosketches/kmercount/chash"
	"github.com/biosketches/kmercount/iha"
)

// segmentFooterSize is the trailing fixed-size footer every segment file
// carries: bucketCount (uint32) followed by indexOffset (uint64), the
// absolute byte offset where the chash-format portion of the file ends
// and the per-bucket index entries begin.
const segmentFooterSize = 4 + 8

// bucketIndexEntry records where one global bucket's records begin within
// the segment's record stream, measured from the start of the file (i.e.
// a seekable position a reader can jump to directly).
type bucketIndexEntry struct {
	BucketID uint32
	Offset   uint64
}

// countingWriter tracks the number of bytes written so far, letting the
// segment writer record each bucket's starting byte offset without a
// separate Seek/Tell round trip.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// bucketOf returns the global sort bucket for key, taken from its top
// lgNumBuckets bits out of a keyBits-wide key. Grouping by high bits this
// way means writing buckets 0..numBuckets-1 in order, each internally
// sorted, already yields a fully key-sorted segment file.
func bucketOf(key uint64, keyBits, lgNumBuckets int) uint32 {
	if lgNumBuckets == 0 {
		return 0
	}
	shift := keyBits - lgNumBuckets
	return uint32(key >> uint(shift))
}

// writeSegment writes one spill's records, already grouped into
// numBuckets buckets and sorted within each bucket, to path. header's
// RecordCount must already be the true total; segments know their size
// up front (unlike the final merge, which doesn't).
//
// On any I/O error the partial file is unlinked before returning, per
// on any I/O error the partial file is unlinked before returning.
func writeSegment(path string, header chash.Header, buckets [][]chash.Record) (err error) {
	f, ferr := os.Create(path)
	if ferr != nil {
		return &IOError{Path: path, Err: ferr}
	}
	defer func() {
		cerr := f.Close()
		if err != nil {
			os.Remove(path)
			return
		}
		if cerr != nil {
			err = &IOError{Path: path, Err: cerr}
			os.Remove(path)
		}
	}()

	cw := &countingWriter{w: f}
	w, werr := chash.NewWriter(cw, header)
	if werr != nil {
		return &IOError{Path: path, Err: werr}
	}

	entries := make([]bucketIndexEntry, 0, len(buckets))
	for bucketID, recs := range buckets {
		entries = append(entries, bucketIndexEntry{BucketID: uint32(bucketID), Offset: uint64(cw.n)})
		for _, rec := range recs {
			if werr = w.Write(rec); werr != nil {
				return &IOError{Path: path, Offset: cw.n, Err: werr}
			}
		}
		if werr = w.Flush(); werr != nil {
			return &IOError{Path: path, Offset: cw.n, Err: werr}
		}
	}
	if werr = w.Close(); werr != nil {
		return &IOError{Path: path, Offset: cw.n, Err: werr}
	}

	indexOffset := uint64(cw.n)
	for _, e := range entries {
		var buf [12]byte
		binary.LittleEndian.PutUint32(buf[0:4], e.BucketID)
		binary.LittleEndian.PutUint64(buf[4:12], e.Offset)
		if _, werr = cw.Write(buf[:]); werr != nil {
			return &IOError{Path: path, Offset: cw.n, Err: werr}
		}
	}

	var footer [segmentFooterSize]byte
	binary.LittleEndian.PutUint32(footer[0:4], uint32(len(entries)))
	binary.LittleEndian.PutUint64(footer[4:12], indexOffset)
	if _, werr = cw.Write(footer[:]); werr != nil {
		return &IOError{Path: path, Offset: cw.n, Err: werr}
	}
	return nil
}

// openSegment opens path for the final merge, returning a chash.Reader
// positioned over exactly the chash-format portion of the file (the
// bucket index and footer are merge-irrelevant; they exist purely for
// random access to a single bucket, a capability callers outside this
// package can replicate by re-reading the footer themselves).
func openSegment(path string) (*os.File, *chash.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &IOError{Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, &IOError{Path: path, Err: err}
	}
	var footer [segmentFooterSize]byte
	if _, err := f.ReadAt(footer[:], info.Size()-segmentFooterSize); err != nil {
		f.Close()
		return nil, nil, &IOError{Path: path, Err: err}
	}
	indexOffset := binary.LittleEndian.Uint64(footer[4:12])

	reader, err := chash.NewReader(io.NewSectionReader(f, 0, int64(indexOffset)))
	if err != nil {
		f.Close()
		return nil, nil, &IOError{Path: path, Err: err}
	}
	return f, reader, nil
}

// groupByBucket sorts records into numBuckets buckets by bucketOf and
// sorts each bucket's records by key, ready for writeSegment.
func groupByBucket(records []iha.Record, keyBits, lgNumBuckets int) [][]chash.Record {
	numBuckets := 1 << uint(lgNumBuckets)
	buckets := make([][]chash.Record, numBuckets)
	for _, rec := range records {
		b := bucketOf(rec.Key, keyBits, lgNumBuckets)
		buckets[b] = append(buckets[b], chash.Record{Key: rec.Key, Value: rec.Value})
	}
	for i := range buckets {
		sort.Slice(buckets[i], func(a, b int) bool { return buckets[i][a].Key < buckets[i][b].Key })
	}
	return buckets
}
