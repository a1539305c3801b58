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

package seqparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastaParserReplacesHeaderWithResetSentinel(t *testing.T) {
	p := NewFastaParser("s1.fa")
	out, err := p.Parse([]byte(">s\nACGT\n"))
	require.NoError(t, err)
	assert.Equal(t, "NACGT", string(out))
}

func TestFastaParserStripsNewlinesInsideSequence(t *testing.T) {
	p := NewFastaParser("s2.fa")
	out, err := p.Parse([]byte(">s\nAC\nGT\n"))
	require.NoError(t, err)
	assert.Equal(t, "NACGT", string(out))
}

func TestFastaParserHandlesHeaderSpanningBuffers(t *testing.T) {
	p := NewFastaParser("s3.fa")
	out1, err := p.Parse([]byte(">header"))
	require.NoError(t, err)
	out2, err := p.Parse([]byte(" rest\nACGT\n"))
	require.NoError(t, err)
	assert.Equal(t, "N", string(out1))
	assert.Equal(t, "ACGT", string(out2))
}

func TestFastaParserMultipleRecords(t *testing.T) {
	p := NewFastaParser("s4.fa")
	out, err := p.Parse([]byte(">a\nAAAA\n>b\nAAAA\n"))
	require.NoError(t, err)
	assert.Equal(t, "NAAAANAAAA", string(out))
}
