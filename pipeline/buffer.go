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

// Package pipeline implements the double-FIFO producer/consumer I/O
// pipeline: a filler goroutine streams decoded sequence bytes from
// memory-mapped input files into pooled buffers, and worker goroutines
// claim those buffers, roll k-mers over them, and submit to the shared
// invertible hash array.
package pipeline

// Buffer is one pool-owned decoded-sequence chunk, cycled between the
// free and ready queues for the life of a Pipeline — allocated once,
// never resized, never freed until shutdown. Seq holds
// decoded FASTA/FASTQ output bytes ('A'/'C'/'G'/'T'/'N'), not yet split
// into k-mers; Qual parallels Seq byte-for-byte in Quake mode. Len gives
// the valid prefix of both slices; NL and NS record file-position context
// the filler observed when it started this buffer (whether the preceding
// raw byte was a newline, and whether this buffer opens mid-header), kept
// for audit/logging rather than correctness, since the parser's own
// internal state (not the buffer) is what carries continuity.
type Buffer struct {
	Seq  []byte
	Qual []byte
	Len  int
	NL   bool
	NS   bool
}

func newBuffer(size int, quake bool) *Buffer {
	b := &Buffer{Seq: make([]byte, size)}
	if quake {
		b.Qual = make([]byte, size)
	}
	return b
}

// Pool is the double-FIFO pair of bounded MPMC queues (Go channels): free
// holds buffers available to the filler,
// ready holds buffers awaiting a worker.
type Pool struct {
	free  chan *Buffer
	ready chan *Buffer
}

// NewPool allocates numBuffers buffers of bufferSize bytes each, all
// initially on the free queue.
func NewPool(numBuffers, bufferSize int, quake bool) *Pool {
	p := &Pool{
		free:  make(chan *Buffer, numBuffers),
		ready: make(chan *Buffer, numBuffers),
	}
	for i := 0; i < numBuffers; i++ {
		p.free <- newBuffer(bufferSize, quake)
	}
	return p
}
