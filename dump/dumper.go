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

package dump

import (
	"container/heap"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/biosketches/kmercount/chash"
	"github.com/biosketches/kmercount/iha"
)

// Config collects the parameters a Dumper needs: how many shard/gather
// workers to run concurrently and where to put segment files.
type Config struct {
	Dir        string // spill directory; segment files are created here
	Workers    int    // shard-scan and bucket-gather concurrency
	LgBuckets  int    // log2 of the number of global sort buckets
	ReprobeSeed  uint64
	ReprobeTable []uint64
	Logger     *logrus.Logger
}

// Dumper shards a quiescent iha.Table's slot range across Config.Workers
// goroutines, groups reconstructed keys into 2^LgBuckets global buckets
// by their high bits, gathers and sorts each bucket concurrently, and
// appends the result as one sorted segment file. The segment list is
// single-writer state, touched only between spill barriers.
type Dumper struct {
	cfg      Config
	segments []string
}

// New returns a Dumper configured by cfg. cfg.Workers and cfg.LgBuckets
// default to 1 if non-positive.
func New(cfg Config) *Dumper {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.LgBuckets <= 0 {
		cfg.LgBuckets = 1
	}
	return &Dumper{cfg: cfg}
}

// Segments returns the segment file paths produced so far.
func (d *Dumper) Segments() []string {
	out := make([]string, len(d.segments))
	copy(out, d.segments)
	return out
}

// Spill drains table into one new sorted segment file and resets it for
// continued counting. table must be quiescent: no concurrent Add calls.
//
// On an I/O failure the table is left untouched and the partial segment
// file has already been unlinked by writeSegment.
func (d *Dumper) Spill(ctx context.Context, table *iha.Table) (string, error) {
	n := table.Len()
	numShards := clampMax(1, clampMin(d.cfg.Workers, n))
	shardSize := (n + numShards - 1) / numShards
	numBuckets := 1 << uint(d.cfg.LgBuckets)

	shardBuckets := make([][][]chash.Record, numShards)
	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < numShards; s++ {
		s := s
		lo := s * shardSize
		hi := clampMin(lo+shardSize, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			var records []iha.Record
			for rec := range table.IterateRange(lo, hi) {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				records = append(records, rec)
			}
			shardBuckets[s] = groupByBucket(records, table.KeyBits(), d.cfg.LgBuckets)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("dump: spill scan: %w", err)
	}

	merged := make([][]chash.Record, numBuckets)
	sem := semaphore.NewWeighted(int64(d.cfg.Workers))
	g2, gctx2 := errgroup.WithContext(ctx)
	for b := 0; b < numBuckets; b++ {
		b := b
		if err := sem.Acquire(gctx2, 1); err != nil {
			break
		}
		g2.Go(func() error {
			defer sem.Release(1)
			var total int
			for s := 0; s < numShards; s++ {
				if shardBuckets[s] != nil {
					total += len(shardBuckets[s][b])
				}
			}
			bucket := make([]chash.Record, 0, total)
			for s := 0; s < numShards; s++ {
				if shardBuckets[s] != nil {
					bucket = append(bucket, shardBuckets[s][b]...)
				}
			}
			sort.Slice(bucket, func(i, j int) bool { return bucket[i].Key < bucket[j].Key })
			merged[b] = bucket
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return "", fmt.Errorf("dump: bucket gather: %w", err)
	}

	var recordCount uint64
	for _, bucket := range merged {
		recordCount += uint64(len(bucket))
	}

	idx := len(d.segments)
	path := filepath.Join(d.cfg.Dir, fmt.Sprintf("segment-%05d.kmrseg", idx))
	header := chash.Header{
		K:            uint32(table.K()),
		KeyBits:      uint32(table.KeyBits()),
		ValueBits:    headerValueBits,
		RecordCount:  recordCount,
		Matrix:       table.Matrix(),
		ReprobeSeed:  d.cfg.ReprobeSeed,
		ReprobeTable: d.cfg.ReprobeTable,
	}
	if err := writeSegment(path, header, merged); err != nil {
		return "", err
	}

	d.segments = append(d.segments, path)
	table.Reset()
	if d.cfg.Logger != nil {
		d.cfg.Logger.WithFields(logrus.Fields{"segment": path, "records": recordCount}).Info("dump: spill complete")
	}
	return path, nil
}

// headerValueBits is fixed at 64: segments and the merged output always
// carry a full-width value field, wide enough for any pre-overflow IHA
// value width and for merge-time summation across many segments.
const headerValueBits = 64

// heapItem is one in-flight (record, source segment) pair during the
// final k-way merge.
type heapItem struct {
	rec    chash.Record
	segIdx int
}

type recordHeap []heapItem

func (h recordHeap) Len() int            { return len(h) }
func (h recordHeap) Less(i, j int) bool  { return h[i].rec.Key < h[j].rec.Key }
func (h recordHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *recordHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *recordHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge performs the final k-way merge of every segment Spill has
// produced, summing equal keys across segments, and writes the result as
// a compacted file at dstPath. header.RecordCount need not be accurate
// in advance; Merge patches it in place once the true merged count is
// known. On success every source segment is removed.
func (d *Dumper) Merge(ctx context.Context, dstPath string, header chash.Header) (uint64, error) {
	type openSeg struct {
		file *os.File
		next func() (chash.Record, bool)
		stop func()
	}
	segs := make([]openSeg, len(d.segments))
	for i, path := range d.segments {
		f, reader, err := openSegment(path)
		if err != nil {
			for _, s := range segs[:i] {
				s.stop()
				s.file.Close()
			}
			return 0, err
		}
		next, stop := iter.Pull(reader.Records())
		segs[i] = openSeg{file: f, next: next, stop: stop}
	}
	defer func() {
		for _, s := range segs {
			if s.stop != nil {
				s.stop()
			}
			if s.file != nil {
				s.file.Close()
			}
		}
	}()

	out, err := os.Create(dstPath)
	if err != nil {
		return 0, &IOError{Path: dstPath, Err: err}
	}
	defer out.Close()

	header.RecordCount = 0
	w, err := chash.NewWriter(out, header)
	if err != nil {
		return 0, &IOError{Path: dstPath, Err: err}
	}

	h := &recordHeap{}
	heap.Init(h)
	push := func(i int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, ok := segs[i].next()
		if ok {
			heap.Push(h, heapItem{rec: rec, segIdx: i})
		}
		return nil
	}
	for i := range segs {
		if err := push(i); err != nil {
			return 0, err
		}
	}

	var count uint64
	for h.Len() > 0 {
		item := heap.Pop(h).(heapItem)
		key := item.rec.Key
		sum := item.rec.Value
		if err := push(item.segIdx); err != nil {
			return 0, err
		}
		for h.Len() > 0 && (*h)[0].rec.Key == key {
			dup := heap.Pop(h).(heapItem)
			sum += dup.rec.Value
			if err := push(dup.segIdx); err != nil {
				return 0, err
			}
		}
		if err := w.Write(chash.Record{Key: key, Value: sum}); err != nil {
			return 0, &IOError{Path: dstPath, Err: err}
		}
		count++
	}

	if err := w.Close(); err != nil {
		return 0, &IOError{Path: dstPath, Err: err}
	}
	if err := chash.PatchRecordCount(out, count); err != nil {
		return 0, &IOError{Path: dstPath, Err: err}
	}

	for _, path := range d.segments {
		os.Remove(path)
	}
	d.segments = nil
	if d.cfg.Logger != nil {
		d.cfg.Logger.WithFields(logrus.Fields{"output": dstPath, "records": count}).Info("dump: merge complete")
	}
	return count, nil
}
