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
	"errors"
	"sync"

	"github.com/biosketches/kmercount/iha"
	"github.com/biosketches/kmercount/kmer"
)

// Worker is one consumer of the ready queue: it rolls k-mers over each
// buffer it claims, adds each one (or its canonical form) into the shared
// invertible hash array, and returns the buffer to the free queue.
//
// Gate, when set, is held read-locked for the duration of each call into
// table.Add: a coordinator wanting to spill the table takes the write
// lock, which blocks until every in-flight add completes and admits no
// new one, giving the quiescence Spill requires. FullNotify, when set,
// receives a non-blocking signal the first time an add hits
// TableFullError, telling the coordinator a spill is due; the worker then
// waits on the write lock and retries the same add once the spill that
// drained and reset the table has released it.
type Worker struct {
	pool       *Pool
	table      *iha.Table
	k          int
	canonical  bool
	quake      bool
	qualStart  byte
	Gate       *sync.RWMutex
	FullNotify chan<- struct{}
}

// NewWorker returns a Worker that rolls k-mers of length k over buffers
// drawn from pool, submitting into table. When canonical is true, the
// lexicographically smaller of a k-mer and its reverse complement is
// counted. When quake is true, each add is weighted by the Quake quality
// product (kmer.WeightScale fixed-point scaled) instead of a plain count
// of one, with qualStart giving the Phred offset of the quality encoding.
func NewWorker(pool *Pool, table *iha.Table, k int, canonical, quake bool, qualStart byte) *Worker {
	return &Worker{pool: pool, table: table, k: k, canonical: canonical, quake: quake, qualStart: qualStart}
}

// Run claims buffers from the ready queue until it receives the poison
// sentinel (a nil buffer) or ctx is canceled, rolling k-mers over each one
// before returning it to the free queue.
func (w *Worker) Run(ctx context.Context) error {
	var win *kmer.QualityWindow
	if w.quake {
		win = kmer.NewQualityWindow(w.k)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf := <-w.pool.ready:
			if buf == nil {
				return nil
			}
			if err := w.processBuffer(ctx, buf, win); err != nil {
				w.pool.free <- buf
				return err
			}
			w.pool.free <- buf
		}
	}
}

// addWithSpillWait adds key/delta into the table, holding Gate's read
// side for the call. On TableFullError it signals FullNotify, releases
// the read lock, blocks on Gate's write side until the coordinator's
// spill has drained and reset the table, then retries the same add —
// never advancing the caller's rolling k-mer state in the meantime, so
// no k-mer is ever recounted or skipped across a spill.
func (w *Worker) addWithSpillWait(ctx context.Context, key, delta uint64) error {
	for {
		if w.Gate != nil {
			w.Gate.RLock()
		}
		err := w.table.Add(key, delta)
		if w.Gate != nil {
			w.Gate.RUnlock()
		}
		if err == nil {
			return nil
		}
		var full *iha.TableFullError
		if !errors.As(err, &full) {
			return err
		}
		if w.FullNotify != nil {
			select {
			case w.FullNotify <- struct{}{}:
			default:
			}
		}
		if w.Gate == nil {
			return err
		}
		w.Gate.Lock()
		w.Gate.Unlock()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

func (w *Worker) processBuffer(ctx context.Context, buf *Buffer, win *kmer.QualityWindow) error {
	var kmerFwd, kmerRev uint64
	var cmlen int

	reset := func() {
		kmerFwd, kmerRev, cmlen = 0, 0, 0
		if w.quake {
			win.Reset()
		}
	}

	for i := 0; i < buf.Len; i++ {
		code := kmer.CodeOf(buf.Seq[i])
		switch code {
		case kmer.Ignore:
			continue
		case kmer.Reset:
			reset()
			continue
		}

		kmerFwd = kmer.Roll(kmerFwd, code, w.k)
		kmerRev = kmer.RollComplement(kmerRev, code, w.k)
		cmlen++

		// The window holds per-position quality weights, the same on
		// either strand, so one running product serves both the forward
		// k-mer and its reverse complement.
		var weight float64
		if w.quake {
			weight = win.Append(kmer.OneMinusErrorProb(buf.Qual[i], w.qualStart))
		}

		if cmlen < w.k {
			continue
		}

		key := kmerFwd
		if w.canonical && kmerRev < kmerFwd {
			key = kmerRev
		}

		var delta uint64
		if w.quake {
			delta = kmer.ScaleWeight(weight)
		} else {
			delta = 1
		}

		if err := w.addWithSpillWait(ctx, key, delta); err != nil {
			return err
		}
	}
	return nil
}
