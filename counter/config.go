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

// Package counter wires the pipeline, the invertible hash array, the
// dumper, and the compacted hash writer into one coordinated run: the
// library entrypoint that cmd/kmercount's CLI boundary calls into.
package counter

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Config collects the full CLI surface plus the ambient logging and
// runtime knobs. Parsing flags into Config is the caller's job
// (cmd/kmercount); Run only accepts an already-populated,
// already-validated Config.
type Config struct {
	// Inputs is the ordered list of FASTA/FASTQ file paths to count.
	Inputs []string
	// OutputPath is where the final compacted hash file is written.
	OutputPath string
	// SpillDir holds intermediate segment files during counting; it must
	// exist and be writable.
	SpillDir string

	// K is the k-mer length; 2*K must fit in a machine word (K in [1,32]).
	K int
	// Canonical counts min(kmer, reverseComplement(kmer)) instead of the
	// forward strand only.
	Canonical bool

	// LgTableSize is log2 of the in-memory hash table's slot count.
	LgTableSize int
	// ValueBits is the width of each slot's count field before overflow.
	ValueBits int
	// MaxReprobe bounds the open-addressing reprobe chain length.
	MaxReprobe int
	// Seed derives both the table's invertible matrix and its reprobe
	// stride table.
	Seed uint64

	// Quake enables quality-weighted counting: FASTQ quality bytes scale
	// each k-mer's contribution instead of counting occurrences.
	Quake bool
	// QualityStart is the Phred quality encoding's zero-quality byte
	// value (e.g. '!' for Phred+33).
	QualityStart byte

	// Threads is the number of worker goroutines rolling k-mers and
	// submitting to the table; it also bounds dumper spill concurrency.
	Threads int

	// LgSpillBuckets is log2 of the number of global sort buckets a
	// spill partitions records into.
	LgSpillBuckets int
	// SpillLoadFactor triggers a proactive spill once the table's
	// occupancy (committed slots / total slots) reaches this fraction,
	// checked periodically by the monitor goroutine alongside the
	// reactive TableFullError trigger; 0 disables the proactive check
	// and leaves TableFullError as the sole trigger.
	SpillLoadFactor float64

	// UseMmapSlab backs the table's slab with an anonymous mmap instead
	// of a heap slice.
	UseMmapSlab bool

	// Logger receives stage-boundary logs; if nil, a logger discarding
	// all output is used.
	Logger *logrus.Logger
}

// Validate reports the first constraint Config violates, or nil.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("counter: no input files")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("counter: output path required")
	}
	if c.SpillDir == "" {
		return fmt.Errorf("counter: spill directory required")
	}
	if c.K <= 0 || c.K > 32 {
		return fmt.Errorf("counter: k=%d out of range [1,32]", c.K)
	}
	if c.LgTableSize <= 0 || c.LgTableSize > 2*c.K {
		return fmt.Errorf("counter: lg_table_size=%d invalid for k=%d", c.LgTableSize, c.K)
	}
	if c.ValueBits <= 0 {
		return fmt.Errorf("counter: value_bits must be positive")
	}
	if c.MaxReprobe <= 0 {
		return fmt.Errorf("counter: max_reprobe must be positive")
	}
	if c.Threads <= 0 {
		return fmt.Errorf("counter: threads must be positive")
	}
	if c.LgSpillBuckets <= 0 {
		return fmt.Errorf("counter: lg_spill_buckets must be positive")
	}
	if c.Quake && c.QualityStart == 0 {
		return fmt.Errorf("counter: quality_start required in quake mode")
	}
	if c.SpillLoadFactor < 0 || c.SpillLoadFactor >= 1 {
		return fmt.Errorf("counter: spill_load_factor=%v must be in [0,1)", c.SpillLoadFactor)
	}
	return nil
}

func (c *Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
