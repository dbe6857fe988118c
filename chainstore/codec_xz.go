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
package chainstore

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/launix-de/markovchain/errs"
)

// codecMagic distinguishes a plain JSON snapshot from an xz-compressed
// one so a store can flip CompressSnapshots on or off without
// orphaning previously written files: readers sniff the first few
// bytes instead of trusting config.
var (
	plainMagic = []byte("MCJ1")
	xzMagic    = []byte("MCX1")
)

// encodeSnapshot prefixes data with a codec magic and, if compress is
// true, pipes it through xz. Grounded on the teacher's "xz" stream
// declaration in scm/streams.go, which wraps an io.Writer with
// xz.NewWriter; here the whole blob is small enough to buffer rather
// than stream through a pipe.
func encodeSnapshot(data []byte, compress bool) ([]byte, error) {
	if !compress {
		out := make([]byte, 0, len(plainMagic)+len(data))
		out = append(out, plainMagic...)
		out = append(out, data...)
		return out, nil
	}
	var buf bytes.Buffer
	buf.Write(xzMagic)
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "creating xz writer", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errs.Wrap(errs.Io, "xz-compressing snapshot", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(errs.Io, "closing xz writer", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot reverses encodeSnapshot by sniffing the leading
// magic. A file with neither magic is treated as corrupt rather than
// assumed-plain, so a truncated or foreign file never silently
// round-trips as an empty chain.
func decodeSnapshot(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, plainMagic):
		return raw[len(plainMagic):], nil
	case bytes.HasPrefix(raw, xzMagic):
		r, err := xz.NewReader(bytes.NewReader(raw[len(xzMagic):]))
		if err != nil {
			return nil, errs.Wrap(errs.Corrupt, "opening xz reader", err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Wrap(errs.Corrupt, "decompressing xz snapshot", err)
		}
		return data, nil
	default:
		return nil, errs.New(errs.Corrupt, "snapshot missing recognized codec magic")
	}
}
