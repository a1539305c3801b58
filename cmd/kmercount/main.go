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

// Command kmercount is a thin CLI boundary over the counter package: it
// parses flags into a counter.Config and calls counter.Run. Anything
// beyond this — format autodetection dispatch, histogram/statistics
// post-processing, compacted-file readers — is left to downstream
// tooling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biosketches/kmercount/counter"
	"github.com/biosketches/kmercount/iha"
	"github.com/biosketches/kmercount/seqparse"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		k                 = flag.Int("k", 31, "k-mer length")
		canonical         = flag.Bool("canonical", true, "count canonical (min of forward/reverse-complement) k-mers")
		lgTableSize       = flag.Int("lg-table-size", 26, "log2 of the in-memory table's slot count")
		valueBits         = flag.Int("value-bits", 32, "bit width of each slot's count field")
		maxReprobe        = flag.Int("max-reprobe", 64, "reprobe chain length before a slot is considered full")
		seed              = flag.Uint64("seed", 0x9e3779b97f4a7c15, "seed for the invertible hash matrix and reprobe table")
		quake             = flag.Bool("quake", false, "quality-weighted counting over FASTQ quality scores")
		qualityStart      = flag.Int("quality-start", '!', "Phred quality encoding's zero-quality byte value")
		threads           = flag.Int("threads", 4, "worker goroutine count")
		lgSpillBuckets    = flag.Int("lg-spill-buckets", 6, "log2 of the number of global sort buckets per spill")
		spillDir          = flag.String("spill-dir", "", "directory for intermediate segment files (required)")
		output            = flag.String("output", "", "path to write the compacted hash file (required)")
		useMmap           = flag.Bool("mmap", false, "back the table's slab with an anonymous mmap instead of the heap")
		spillAtLoadFactor = flag.Float64("spill-at-load-factor", 0, "proactively spill once table occupancy reaches this fraction (0 disables; TableFull still triggers a reactive spill)")
		logLevel          = flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	)
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kmercount: %v\n", err)
		return 2
	}
	logger.SetLevel(level)

	cfg := counter.Config{
		Inputs:          flag.Args(),
		OutputPath:      *output,
		SpillDir:        *spillDir,
		K:               *k,
		Canonical:       *canonical,
		LgTableSize:     *lgTableSize,
		ValueBits:       *valueBits,
		MaxReprobe:      *maxReprobe,
		Seed:            *seed,
		Quake:           *quake,
		QualityStart:    byte(*qualityStart),
		Threads:         *threads,
		LgSpillBuckets:  *lgSpillBuckets,
		SpillLoadFactor: *spillAtLoadFactor,
		UseMmapSlab:     *useMmap,
		Logger:          logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := counter.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "kmercount: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps a failure to a distinguishable exit code: non-zero on
// a malformed input file, a table that filled without spill budget, or
// any I/O failure.
func exitCode(err error) int {
	var parseErr *seqparse.FileParserError
	if errors.As(err, &parseErr) {
		return 1
	}
	var fullErr *iha.TableFullError
	if errors.As(err, &fullErr) {
		return 3
	}
	return 2
}
