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

	"github.com/sirupsen/logrus"

	"github.com/biosketches/kmercount/seqparse"
)

// Filler is the single producer thread of the double FIFO: it streams
// each input file's decoded bytes (via seqparse) into buffers drawn from
// the free queue, pushing each full buffer onto the ready queue for a
// worker to claim.
type Filler struct {
	pool       *Pool
	k          int
	quake      bool
	numWorkers int
	logger     *logrus.Logger
}

// NewFiller returns a Filler that prepares buffers sized for a k-mer of
// length k, optionally in Quake (quality-paired) mode, posting a poison
// sentinel per worker on shutdown.
func NewFiller(pool *Pool, k int, quake bool, numWorkers int, logger *logrus.Logger) *Filler {
	return &Filler{pool: pool, k: k, quake: quake, numWorkers: numWorkers, logger: logger}
}

// Run streams every file in paths, in order, then posts one poison
// sentinel per worker. It returns the first FileParserError or I/O error
// encountered; in-flight buffers already on the ready queue are left for
// workers to drain rather than discarded.
func (f *Filler) Run(ctx context.Context, paths []string) error {
	defer f.postPoison()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.fillFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) postPoison() {
	for i := 0; i < f.numWorkers; i++ {
		f.pool.ready <- nil
	}
}

func (f *Filler) acquireFree(ctx context.Context) (*Buffer, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case buf := <-f.pool.free:
		return buf, true
	}
}

func (f *Filler) pushReady(ctx context.Context, buf *Buffer) bool {
	select {
	case <-ctx.Done():
		return false
	case f.pool.ready <- buf:
		return true
	}
}

func (f *Filler) fillFile(ctx context.Context, path string) error {
	raw, closeFn, err := mmapFile(path)
	if err != nil {
		return err
	}
	defer closeFn()

	format, skip, err := seqparse.DetectFormat(path, raw)
	if err != nil {
		return err
	}
	raw = raw[skip:]

	var fasta *seqparse.FastaParser
	var fastq *seqparse.FastqParser
	switch format {
	case seqparse.FormatFasta:
		fasta = seqparse.NewFastaParser(path)
	case seqparse.FormatFastq:
		fastq = seqparse.NewFastqParser(path, f.quake)
	}

	seamLen := f.k - 1
	if seamLen < 0 {
		seamLen = 0
	}
	var seamSeq, seamQual []byte
	afterNL := true

	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{"path": path, "format": format}).Debug("pipeline: filling")
	}

	for len(raw) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, ok := f.acquireFree(ctx)
		if !ok {
			return ctx.Err()
		}

		roomForRaw := len(buf.Seq) - len(seamSeq)
		if roomForRaw < 1 {
			roomForRaw = 1
		}
		chunkSize := roomForRaw
		if chunkSize > len(raw) {
			chunkSize = len(raw)
		}
		chunk := raw[:chunkSize]
		raw = raw[chunkSize:]

		var out, qual []byte
		var ns bool
		switch {
		case fasta != nil:
			out, err = fasta.Parse(chunk)
			ns = fasta.InHeader()
		case fastq != nil:
			out, qual, err = fastq.Parse(chunk)
			ns = fastq.InNonSequence()
		}
		if err != nil {
			f.pool.free <- buf
			return err
		}

		n := copy(buf.Seq, seamSeq)
		n += copy(buf.Seq[n:], out)
		buf.Len = n
		if f.quake {
			qn := copy(buf.Qual, seamQual)
			qn += copy(buf.Qual[qn:], qual)
		}
		buf.NL = afterNL
		buf.NS = ns

		if len(chunk) > 0 {
			afterNL = chunk[len(chunk)-1] == '\n'
		}

		tailFrom := buf.Len - seamLen
		if tailFrom < 0 {
			tailFrom = 0
		}
		seamSeq = append(seamSeq[:0], buf.Seq[tailFrom:buf.Len]...)
		if f.quake {
			seamQual = append(seamQual[:0], buf.Qual[tailFrom:buf.Len]...)
		}

		if !f.pushReady(ctx, buf) {
			return ctx.Err()
		}
	}

	if fastq != nil {
		return fastq.Finish()
	}
	return nil
}
