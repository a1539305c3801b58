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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolAllFree(t *testing.T) {
	p := NewPool(4, 16, false)
	assert.Len(t, p.free, 4)
	assert.Len(t, p.ready, 0)

	buf := <-p.free
	require.NotNil(t, buf)
	assert.Len(t, buf.Seq, 16)
	assert.Nil(t, buf.Qual)
}

func TestNewPoolQuakeAllocatesQual(t *testing.T) {
	p := NewPool(2, 8, true)
	buf := <-p.free
	require.NotNil(t, buf.Qual)
	assert.Len(t, buf.Qual, 8)
}

func TestPoolRecycling(t *testing.T) {
	p := NewPool(1, 4, false)
	buf := <-p.free
	p.ready <- buf
	got := <-p.ready
	assert.Same(t, buf, got)
	p.free <- got
	assert.Len(t, p.free, 1)
}
