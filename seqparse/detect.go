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

// Format identifies which record syntax a file uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatFasta
	FormatFastq
)

// DetectFormat peeks data (expected to be the start of a mapped input
// file) for its first non-whitespace byte and returns the format it
// implies — '>' for FASTA, '@' for FASTQ — along with how many leading
// bytes were skipped. Any other byte is a FileParserError naming path.
// Dispatching the detected format to a particular downstream tool is
// left to the caller.
func DetectFormat(path string, data []byte) (Format, int, error) {
	for i, b := range data {
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			continue
		case b == '>':
			return FormatFasta, i, nil
		case b == '@':
			return FormatFastq, i, nil
		default:
			return FormatUnknown, i, &FileParserError{
				Path: path, Offset: int64(i),
				Msg: "unrecognized input file header byte",
			}
		}
	}
	return FormatUnknown, len(data), &FileParserError{Path: path, Offset: int64(len(data)), Msg: "empty input file"}
}
