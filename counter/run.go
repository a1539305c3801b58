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

package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/biosketches/kmercount/chash"
	"github.com/biosketches/kmercount/dump"
	"github.com/biosketches/kmercount/iha"
	"github.com/biosketches/kmercount/kmer"
	"github.com/biosketches/kmercount/pipeline"
)

// loadFactorPollInterval bounds how long a table can sit above
// cfg.SpillLoadFactor before the proactive spill check notices.
const loadFactorPollInterval = 50 * time.Millisecond

// bufferSize is the byte capacity of each pooled pipeline buffer.
const bufferSize = 1 << 20

// numBuffersPerWorker bounds how many buffers may be in flight (filled
// but not yet fully consumed) per worker goroutine.
const numBuffersPerWorker = 4

// Run counts every k-mer across cfg.Inputs and writes the compacted hash
// file at cfg.OutputPath, spilling intermediate segments to cfg.SpillDir
// as the table fills. It runs one filler goroutine, cfg.Threads worker
// goroutines, and the dumper's spill workers, all under one
// errgroup.Group with first-error cooperative shutdown.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.logger()

	table, err := iha.New(iha.Config{
		K:          cfg.K,
		LgSize:     cfg.LgTableSize,
		ValueBits:  cfg.ValueBits,
		MaxReprobe: cfg.MaxReprobe,
		Seed:       cfg.Seed,
		UseMmap:    cfg.UseMmapSlab,
	})
	if err != nil {
		return fmt.Errorf("counter: building table: %w", err)
	}

	dumper := dump.New(dump.Config{
		Dir:          cfg.SpillDir,
		Workers:      cfg.Threads,
		LgBuckets:    cfg.LgSpillBuckets,
		ReprobeSeed:  cfg.Seed,
		ReprobeTable: table.ReprobeTable(),
		Logger:       logger,
	})

	pool := pipeline.NewPool(numBuffersPerWorker*cfg.Threads, bufferSize, cfg.Quake)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	filler := pipeline.NewFiller(pool, cfg.K, cfg.Quake, cfg.Threads, logger)
	g.Go(func() error {
		return filler.Run(gctx, cfg.Inputs)
	})

	var gate sync.RWMutex
	fullNotify := make(chan struct{}, 1)
	stopMonitor := make(chan struct{})
	var monitorErr error
	var monitorWG sync.WaitGroup

	spill := func() error {
		gate.Lock()
		_, err := dumper.Spill(gctx, table)
		gate.Unlock()
		if err != nil {
			return err
		}
		logger.WithField("segments", len(dumper.Segments())).Info("counter: spilled table")
		return nil
	}

	// A load factor of 0 (the default) disables the proactive check and
	// leaves TableFullError as the sole spill trigger.
	var loadFactorC <-chan time.Time
	if cfg.SpillLoadFactor > 0 {
		ticker := time.NewTicker(loadFactorPollInterval)
		defer ticker.Stop()
		loadFactorC = ticker.C
	}

	monitorWG.Add(1)
	go func() {
		defer monitorWG.Done()
		for {
			select {
			case <-stopMonitor:
				return
			case <-gctx.Done():
				return
			case <-fullNotify:
				if err := spill(); err != nil {
					monitorErr = err
					cancelRun()
					return
				}
			case <-loadFactorC:
				if table.LoadFactor() < cfg.SpillLoadFactor {
					continue
				}
				if err := spill(); err != nil {
					monitorErr = err
					cancelRun()
					return
				}
			}
		}
	}()

	for i := 0; i < cfg.Threads; i++ {
		w := pipeline.NewWorker(pool, table, cfg.K, cfg.Canonical, cfg.Quake, cfg.QualityStart)
		w.Gate = &gate
		w.FullNotify = fullNotify
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	runErr := g.Wait()
	close(stopMonitor)
	monitorWG.Wait()
	if monitorErr != nil {
		return monitorErr
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("counter: counting complete, spilling final table")
	gate.Lock()
	_, err = dumper.Spill(ctx, table)
	gate.Unlock()
	if err != nil {
		return fmt.Errorf("counter: final spill: %w", err)
	}

	valueKind := chash.ValueKindCount
	var weightScale uint64
	if cfg.Quake {
		valueKind = chash.ValueKindWeight
		weightScale = kmer.WeightScale
	}

	header := chash.Header{
		K:       uint32(cfg.K),
		KeyBits: uint32(2 * cfg.K),
		// Segments already carry full 64-bit values (summed counts and
		// quality weights can exceed cfg.ValueBits well before merge),
		// so the compacted output matches rather than narrows them.
		ValueBits:    64,
		ValueKind:    valueKind,
		WeightScale:  weightScale,
		Matrix:       table.Matrix(),
		ReprobeSeed:  cfg.Seed,
		ReprobeTable: table.ReprobeTable(),
	}

	count, err := dumper.Merge(ctx, cfg.OutputPath, header)
	if err != nil {
		return fmt.Errorf("counter: merging segments: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"records": count,
		"output":  cfg.OutputPath,
	}).Info("counter: run complete")
	return nil
}
