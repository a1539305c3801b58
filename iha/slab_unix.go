//go:build unix

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

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// newMmapSlab allocates an anonymous, zero-initialized region sized for
// `size` slots and reinterprets it as atomic-addressable uint64 words.
// Grounded on the example pack's grailbio k-mer index, which maps its hash
// table the same way (unix.Mmap with MAP_ANON|MAP_PRIVATE, madvise'd
// huge-page) and operates on it in place for the life of the process.
func newMmapSlab(size int) (*Slab, error) {
	nbytes := size * 8
	data, err := unix.Mmap(-1, 0, nbytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("iha: mmap slab of %d bytes: %w", nbytes, err)
	}
	_ = unix.Madvise(data, unix.MADV_HUGEPAGE)

	words := unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&data[0])), size)
	return &Slab{
		words:  words,
		closer: func() error { return unix.Munmap(data) },
	}, nil
}
