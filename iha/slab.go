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

package iha

import "sync/atomic"

// Slab is the zero-initialized, pointer-stable, atomic-addressable backing
// store for a Table's slots. The default allocator is a plain heap slice;
// Config.UseMmap selects the unix mmap-backed alternative (slab_unix.go),
// both satisfying the same contract so the Table code never knows which
// one it was given.
type Slab struct {
	words  []atomic.Uint64
	closer func() error
}

func newHeapSlab(size int) *Slab {
	return &Slab{words: make([]atomic.Uint64, size)}
}

func (s *Slab) at(i int) *atomic.Uint64 { return &s.words[i] }

func (s *Slab) len() int { return len(s.words) }

// Reset zeroes every slot, as a spill does before counting resumes.
func (s *Slab) reset() {
	for i := range s.words {
		s.words[i].Store(0)
	}
}

// Close releases any OS resources backing the slab (a no-op for the
// heap-backed default).
func (s *Slab) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
