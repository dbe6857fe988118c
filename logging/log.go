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
// Package logging centralizes the engine's operational print lines.
// The engine does not adopt a structured logging facade: like the
// teacher codebase it is grounded on, it prints short, direct lines at
// the point where a mutation or recoverable fault happens.
package logging

import (
	"fmt"
	"os"
	"runtime/debug"
)

// Printf writes a single operational line prefixed with "markov: ".
func Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "markov: "+format+"\n", args...)
}

// Println writes a single operational line prefixed with "markov: ".
func Println(args ...any) {
	fmt.Fprint(os.Stderr, "markov: ")
	fmt.Fprintln(os.Stderr, args...)
}

// RecoverAndLog recovers a panic, prints it with a stack trace, and
// returns true if a panic was recovered. Used by worker goroutines so
// a task panic never takes the whole pool down.
func RecoverAndLog(context string) (recovered bool, value any) {
	if r := recover(); r != nil {
		Printf("%s: panic: %v", context, r)
		debug.PrintStack()
		return true, r
	}
	return false, nil
}
