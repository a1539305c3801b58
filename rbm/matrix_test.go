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

package rbm

import (
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMatrix(t *testing.T, r, c int, rng *rand.Rand) *Matrix {
	t.Helper()
	m, err := New(r, c)
	require.NoError(t, err)
	m.Randomize(rng)
	return m
}

func TestInitSizes(t *testing.T) {
	m, err := New(5, 60)
	require.NoError(t, err)
	assert.Equal(t, 5, m.R())
	assert.Equal(t, 60, m.C())
	assert.True(t, m.IsZero())

	_, err = New(100, 100)
	assert.Error(t, err)
	var oor *OutOfRangeError
	assert.ErrorAs(t, err, &oor)

	_, err = New(0, 100)
	assert.Error(t, err)
	_, err = New(10, 0)
	assert.Error(t, err)
	_, err = New(10, 6)
	assert.Error(t, err)
}

func TestCopy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m1 := randomMatrix(t, 5, 55, rng)
	m3, err := New(6, 66)
	require.NoError(t, err)
	m4, err := New(5, 55)
	require.NoError(t, err)

	assert.False(t, m1.IsZero())
	m2 := m1.Clone()
	assert.True(t, m1.Equal(m2))
	assert.False(t, m1.Equal(m3))
	assert.False(t, m1.Equal(m4))
	m4 = m1.Clone()
	assert.True(t, m1.Equal(m4))
}

func TestInitRaw(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const nbCol = 80
	raw := make([]uint64, nbCol)
	for i := range raw {
		raw[i] = rng.Uint64()
	}
	m, err := FromRaw(raw, 19, nbCol)
	require.NoError(t, err)
	assert.Equal(t, 19, m.R())
	assert.Equal(t, 80, m.C())
	mask := (uint64(1) << 19) - 1
	for i := range raw {
		assert.Equal(t, raw[i]&mask, m.Column(i))
	}
}

func TestLowIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m, err := New(30, 100)
	require.NoError(t, err)
	assert.False(t, m.IsLowIdentity())

	m.SetLowIdentity()
	assert.Equal(t, uint64(1), m.Column(m.C()-1))
	for i := m.C() - 1; i > m.C()-m.R(); i-- {
		assert.Equal(t, m.Column(i)<<1, m.Column(i-1))
	}
	for i := 0; i < m.C()-m.R(); i++ {
		assert.Equal(t, uint64(0), m.Column(i))
	}
	assert.True(t, m.IsLowIdentity())

	m.Randomize(rng)
	assert.False(t, m.IsLowIdentity())
}

func TestMatrixVectorProdAllOnes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	mo := randomMatrix(t, 51, 101, rng)
	me := randomMatrix(t, 50, 100, rng)
	mw := randomMatrix(t, 30, 64, rng)

	v := []uint64{^uint64(0), ^uint64(0)}

	var res uint64
	for i := 0; i < mo.C(); i++ {
		res ^= mo.Column(i)
	}
	assert.Equal(t, res, mo.ApplyRef(v))

	res = 0
	for i := 0; i < me.C(); i++ {
		res ^= me.Column(i)
	}
	assert.Equal(t, res, me.ApplyRef(v))

	res = 0
	for i := 0; i < mw.C(); i++ {
		res ^= mw.Column(i)
	}
	assert.Equal(t, res, mw.ApplyRef(v))
}

func TestMatrixVectorProdEveryOtherOnes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	mo := randomMatrix(t, 51, 101, rng)
	me := randomMatrix(t, 50, 100, rng)

	v := []uint64{0xaaaaaaaaaaaaaaaa, 0xaaaaaaaaaaaaaaaa}

	var res uint64
	for i := 1; i < mo.C(); i += 2 {
		res ^= mo.Column(i)
	}
	assert.Equal(t, res, mo.ApplyRef(v))

	res = 0
	for i := 0; i < me.C(); i += 2 {
		res ^= me.Column(i)
	}
	assert.Equal(t, res, me.ApplyRef(v))
}

func TestApplyVariantsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for i := 0; i < 100; i++ {
		r := 2 * (rng.Intn(31) + 1)
		c := 2*rng.Intn(100) + r
		m := randomMatrix(t, r, c, rng)

		nbWords := c/64 + 1
		v := make([]uint64, nbWords)
		for j := range v {
			v[j] = rng.Uint64()
		}

		want := m.ApplyRef(v)
		assert.Equal(t, want, m.ApplyPacked(v))
		assert.Equal(t, want, m.ApplyU128(v))
	}
}

func TestPseudoProductDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := randomMatrix(t, 30, 100, rng)
	m1 := randomMatrix(t, 32, 100, rng)
	m2 := randomMatrix(t, 30, 98, rng)

	_, err := m.PseudoMultiplication(m1)
	assert.Error(t, err)
	var de *DomainError
	assert.ErrorAs(t, err, &de)

	_, err = m.PseudoMultiplication(m2)
	assert.Error(t, err)
}

func TestPseudoProductIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	id, err := New(30, 100)
	require.NoError(t, err)
	id.SetLowIdentity()
	m := randomMatrix(t, 30, 100, rng)

	got, err := id.PseudoMultiplication(m)
	require.NoError(t, err)
	assert.True(t, got.Equal(m))

	got2, err := m.PseudoMultiplication(id)
	require.NoError(t, err)
	assert.True(t, got2.Equal(m))
}

func TestPseudoProductParity(t *testing.T) {
	colSizes := []int{50, 70, 126, 130, 64, 128}
	const nbRows = 30

	for _, nbCols := range colSizes {
		bitsVal := (uint64(1) << 18) - 1
		cols := make([]uint64, nbCols)
		for i := range cols {
			cols[i] = bitsVal
		}
		m, err := FromRaw(cols, nbRows, nbCols)
		require.NoError(t, err)

		p, err := m.PseudoMultiplication(m)
		require.NoError(t, err)

		parityOdd := bits.OnesCount64(bitsVal)%2 == 1
		i := 0
		for ; i < nbCols-nbRows; i++ {
			if parityOdd {
				assert.Equal(t, uint64(0), p.Column(i))
			} else {
				assert.Equal(t, bitsVal, p.Column(i))
			}
		}
		for ; i < nbCols; i++ {
			if parityOdd {
				assert.Equal(t, bitsVal, p.Column(i))
			} else {
				assert.Equal(t, uint64(0), p.Column(i))
			}
		}
	}
}

func TestPseudoProductInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	fullRank, singular := 0, 0
	for i := 0; i < 500; i++ {
		r := 2 * (rng.Intn(31) + 1)
		c := 2*rng.Intn(100) + r
		m := randomMatrix(t, r, c, rng)
		snapshot := m.Clone()

		rank := m.PseudoRank()
		if rank != c {
			singular++
			_, err := m.PseudoInverse()
			assert.Error(t, err)
		} else {
			fullRank++
			inv, err := m.PseudoInverse()
			require.NoError(t, err)
			prod, err := inv.PseudoMultiplication(m)
			require.NoError(t, err)
			assert.True(t, prod.IsLowIdentity())
		}
		assert.True(t, snapshot.Equal(m))
	}
	assert.Equal(t, 500, fullRank+singular)
	assert.NotZero(t, fullRank)
}

func TestPseudoProductRank(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	m, err := New(50, 100)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		m.Randomize(rng)
		snapshot := m.Clone()
		rank := m.PseudoRank()
		assert.True(t, rank >= 0 && rank <= m.C())
		assert.True(t, snapshot.Equal(m))
	}
}

func TestPseudoProductInitRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m, err := New(50, 100)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		im := m.RandomizePseudoInverse(rng)
		assert.Equal(t, m.C(), m.PseudoRank())
		assert.Equal(t, m.C(), im.PseudoRank())
		prod, err := m.PseudoMultiplication(im)
		require.NoError(t, err)
		assert.True(t, prod.IsLowIdentity())
	}
}
