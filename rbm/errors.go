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

import "fmt"

// OutOfRangeError reports an invalid matrix dimension at construction time.
type OutOfRangeError struct {
	R, C int
	Msg  string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("rbm: out of range (r=%d, c=%d): %s", e.R, e.C, e.Msg)
}

// DomainError reports a violated precondition on an operation between two
// matrices, or a singular matrix where an inverse was requested.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string {
	return "rbm: domain error: " + e.Msg
}
