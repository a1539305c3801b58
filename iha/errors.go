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

import "fmt"

// TableFullError reports that an insert exhausted its reprobe chain with
// no free or matching slot found, and the caller has no spill budget left.
type TableFullError struct {
	Key     uint64
	Reprobe int
}

func (e *TableFullError) Error() string {
	return fmt.Sprintf("iha: table full: key %#x exhausted %d reprobes", e.Key, e.Reprobe)
}
