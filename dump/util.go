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

package dump

import "golang.org/x/exp/constraints"

// clampMin and clampMax bound shard and bucket index arithmetic during a
// spill.
func clampMin[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func clampMax[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
