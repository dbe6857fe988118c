/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package ingest

import (
	"encoding/json"
	"io"

	"github.com/launix-de/markovchain/errs"
)

// jsonRecord is the wire shape of one element in the Training-record
// JSON import array (spec §6): `{ "message": string, "attachments"?:
// []string }`.
type jsonRecord struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments"`
}

// JSONImportSource streams a Training-record JSON array
// (`[{"message": ..., "attachments": [...]}]`) off an io.Reader one
// element at a time via json.Decoder's token interleaving, so the
// whole array never has to be materialized in memory (spec §4.6 file
// import; grounded on the teacher's LoadJSON channel-fed line scanner
// in storage/json.go, adapted here to array-of-objects framing
// instead of JSONL via the decoder's own streaming token API rather
// than a line scanner, since the import format is a single JSON
// array rather than newline-delimited objects).
type JSONImportSource struct {
	r       io.ReadCloser
	dec     *json.Decoder
	opened  bool
	drained bool
}

// NewJSONImportSource wraps r as a streaming RecordSource. r is closed
// by Close.
func NewJSONImportSource(r io.ReadCloser) *JSONImportSource {
	return &JSONImportSource{r: r, dec: json.NewDecoder(r)}
}

func (s *JSONImportSource) ensureOpen() error {
	if s.opened {
		return nil
	}
	tok, err := s.dec.Token()
	if err != nil {
		return errs.Wrap(errs.InvalidInput, "reading opening array token", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return errs.New(errs.InvalidInput, "training-record import must be a JSON array")
	}
	s.opened = true
	return nil
}

// Next decodes and returns the next message in the array.
func (s *JSONImportSource) Next() (Message, bool, error) {
	if s.drained {
		return Message{}, true, nil
	}
	if err := s.ensureOpen(); err != nil {
		return Message{}, false, err
	}
	if !s.dec.More() {
		s.drained = true
		return Message{}, true, nil
	}
	var rec jsonRecord
	if err := s.dec.Decode(&rec); err != nil {
		return Message{}, false, errs.Wrap(errs.InvalidInput, "decoding training record", err)
	}
	return Message{Text: rec.Message, Attachments: rec.Attachments}, false, nil
}

func (s *JSONImportSource) Close() error {
	return s.r.Close()
}
