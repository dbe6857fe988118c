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
// Package errs defines the error kinds surfaced across the engine, so
// that the chat-platform adapter, the CLI tools and internal packages
// can all branch on the same sentinels regardless of which package
// raised them.
package errs

import "fmt"

// Kind classifies an engine error per spec §7.
type Kind int

const (
	// InvalidInput marks bad configuration, an empty prefix, a
	// non-positive weight, or a malformed record.
	InvalidInput Kind = iota
	// NotFound marks a tenant without a snapshot on explicit
	// load-only paths.
	NotFound
	// Corrupt marks a snapshot header mismatch or malformed body.
	Corrupt
	// Contention marks an advisory lock held by a live PID.
	Contention
	// Cancelled marks a task cancelled before dispatch, or a pool
	// shut down while the task was still queued.
	Cancelled
	// Worker marks a task that failed inside a worker.
	Worker
	// Io marks a filesystem failure during load or save.
	Io
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case Corrupt:
		return "Corrupt"
	case Contention:
		return "Contention"
	case Cancelled:
		return "Cancelled"
	case Worker:
		return "Worker"
	case Io:
		return "Io"
	default:
		return "Unknown"
	}
}

// Error is the single concrete error type the engine raises. Callers
// branch on Kind via errors.Is against the sentinel values below, or
// by inspecting Kind directly.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.ErrCorrupt) style checks against the
// sentinel values declared below: two *Error values match if they
// carry the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel values usable with errors.Is(err, errs.ErrX).
var (
	ErrInvalidInput = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrNotFound     = &Error{Kind: NotFound, Message: "not found"}
	ErrCorrupt      = &Error{Kind: Corrupt, Message: "corrupt"}
	ErrContention   = &Error{Kind: Contention, Message: "contention"}
	ErrCancelled    = &Error{Kind: Cancelled, Message: "cancelled"}
	ErrWorker       = &Error{Kind: Worker, Message: "worker failure"}
	ErrIo           = &Error{Kind: Io, Message: "io failure"}
)

// RecordError is a per-record failure inside a batch insert; it never
// aborts the batch (spec §4.3, §7).
type RecordError struct {
	Index int
	Err   error
}

func (r RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", r.Index, r.Err)
}
