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

type fastqState int

const (
	fastqNormal fastqState = iota
	fastqHeader
	fastqQual
)

// FastqParser decodes FASTQ-formatted buffers, mirroring the upstream
// fastq_sequence_parser::parse state machine: a header line starting with
// '@' emits the 'N' reset sentinel and resets the running sequence length, a '+'
// line boundary starts the quality block, and exactly seq_len quality
// bytes (newlines not counted) are consumed before returning to normal.
//
// In Quake mode a record's sequence bytes are held back (pendingSeq)
// until their matching quality bytes arrive, then both are emitted
// together, base-for-base in lockstep — mirroring the upstream
// seq_qual_parser's interleaved (base, quality) pair stream, adapted to
// two parallel Go slices instead of one interleaved buffer. This is what
// lets a record's sequence and quality lines straddle different Parse
// buffers without ever pairing a base with the wrong quality byte.
type FastqParser struct {
	Path  string
	Quake bool

	state        fastqState
	afterNewline bool
	seqLen       int
	qualSeen     int
	offset       int64

	pendingSeq []byte // Quake only: bases seen since '+' not yet paired
}

// NewFastqParser returns a parser positioned at the start of a file named
// path (used only for error messages).
func NewFastqParser(path string, quake bool) *FastqParser {
	return &FastqParser{Path: path, Quake: quake, afterNewline: true}
}

// InNonSequence reports whether the parser is currently inside a header
// or quality block, i.e. the next buffer the filler starts would begin
// inside non-sequence metadata.
func (p *FastqParser) InNonSequence() bool {
	return p.state == fastqHeader || p.state == fastqQual
}

// Parse decodes buf, returning the decoded sequence bytes and, in Quake
// mode, a parallel quality byte slice of the same length (nil otherwise).
func (p *FastqParser) Parse(buf []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(buf))
	var qual []byte
	if p.Quake {
		qual = make([]byte, 0, len(buf))
	}

	for _, b := range buf {
		switch p.state {
		case fastqHeader:
			if b == '\n' {
				p.state = fastqNormal
				p.afterNewline = true
			} else {
				p.afterNewline = false
			}

		case fastqQual:
			if b == '\n' {
				p.afterNewline = true
				p.offset++
				continue
			}
			p.afterNewline = false
			if p.Quake {
				out = append(out, p.pendingSeq[p.qualSeen])
				qual = append(qual, b)
			}
			p.qualSeen++
			if p.qualSeen == p.seqLen {
				p.state = fastqNormal
				p.seqLen = 0
				p.qualSeen = 0
				p.pendingSeq = p.pendingSeq[:0]
			}

		default:
			switch {
			case b == '@' && p.afterNewline:
				p.state = fastqHeader
				p.afterNewline = false
				out = append(out, 'N')
				if p.Quake {
					qual = append(qual, 0)
				}
				p.seqLen = 0
				p.pendingSeq = p.pendingSeq[:0]
			case b == '+' && p.afterNewline:
				p.state = fastqQual
				p.afterNewline = false
				p.qualSeen = 0
			case b == '\n':
				p.afterNewline = true
			default:
				p.afterNewline = false
				p.seqLen++
				if p.Quake {
					p.pendingSeq = append(p.pendingSeq, b)
				} else {
					out = append(out, b)
				}
			}
		}
		p.offset++
	}

	return out, qual, nil
}

// Finish must be called once the file's last buffer has been handed to
// Parse. It reports a FileParserError if the file ended mid quality-block
// with fewer quality bytes than its sequence line.
func (p *FastqParser) Finish() error {
	if p.state == fastqQual && p.qualSeen < p.seqLen {
		return &FileParserError{
			Path: p.Path, Offset: p.offset,
			Msg: "quality line shorter than sequence line",
		}
	}
	return nil
}
