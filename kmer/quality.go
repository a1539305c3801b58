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

package kmer

import "math"

// WeightScale fixed-point scales a [0,1] quality weight up into a uint64
// so the Quake add path can fetch-add it into an iha.Table slot the same
// way a plain integer count is added: the value variant is selected at
// construction rather than templated, since the slot only knows how to
// add integers.
const WeightScale = 1 << 32

// ScaleWeight converts a [0,1] quality weight to its fixed-point integer
// form for iha.Table.Add.
func ScaleWeight(weight float64) uint64 {
	return uint64(weight * WeightScale)
}

// UnscaleWeight converts a fixed-point scaled value (a single weight, or
// a sum of many) back to a float64 expected count.
func UnscaleWeight(scaled uint64) float64 {
	return float64(scaled) / WeightScale
}

// qualityTableSize covers Phred quality values 0..40, the range the Quake
// weighting scheme operates over.
const qualityTableSize = 41

// oneMinusErrorProb[q] is 1 - 10^(-q/10): the probability that a basecall
// of Phred quality q is correct. QualityWeight multiplies these across a
// k-mer's bases to get that k-mer's overall confidence weight.
var oneMinusErrorProb [qualityTableSize]float64

func init() {
	for q := 0; q < qualityTableSize; q++ {
		oneMinusErrorProb[q] = 1.0 - math.Pow(10, -float64(q)/10.0)
	}
}

// OneMinusErrorProb returns the per-base confidence weight for a Phred
// quality value, clamped into the table's supported range.
func OneMinusErrorProb(qualityByte, qualityStart byte) float64 {
	q := int(qualityByte) - int(qualityStart)
	if q < 0 {
		q = 0
	}
	if q >= qualityTableSize {
		q = qualityTableSize - 1
	}
	return oneMinusErrorProb[q]
}

// QualityWindow is a fixed-capacity circular buffer of per-base confidence
// weights, one slot per base of the rolling k-mer. Product returns the
// combined weight of the bases currently in the window, the quality-scaled
// count contributed by the Quake add path.
type QualityWindow struct {
	weights []float64
	pos     int
	filled  int
	product float64
}

// NewQualityWindow allocates a window sized for a k-mer of length k.
func NewQualityWindow(k int) *QualityWindow {
	w := &QualityWindow{weights: make([]float64, k)}
	w.Reset()
	return w
}

// Reset clears the window, as when the rolling k-mer restarts after a
// non-ACGT byte.
func (w *QualityWindow) Reset() {
	for i := range w.weights {
		w.weights[i] = 1.0
	}
	w.pos = 0
	w.filled = 0
	w.product = 1.0
}

// Append pushes a new per-base weight into the window, evicting the oldest
// one, and returns the updated product of all weights currently held.
func (w *QualityWindow) Append(weight float64) float64 {
	old := w.weights[w.pos]
	w.weights[w.pos] = weight
	w.pos = (w.pos + 1) % len(w.weights)
	if w.filled < len(w.weights) {
		w.filled++
	}
	if old == 0 {
		w.product = 1.0
		for _, v := range w.weights {
			w.product *= v
		}
	} else {
		w.product = w.product / old * weight
	}
	return w.product
}

// Full reports whether the window has seen at least k appends since the
// last Reset, i.e. whether Product reflects a complete k-mer.
func (w *QualityWindow) Full() bool {
	return w.filled >= len(w.weights)
}

// Product returns the current combined weight without appending.
func (w *QualityWindow) Product() float64 {
	return w.product
}
