//go:build !windows

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

package lockfile

import (
	"os"
	"syscall"
)

// processAlive probes pid for liveness with a zero signal, which on
// POSIX systems never actually signals the target but still reports
// ESRCH if it does not exist.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err != os.ErrProcessDone && !isNoSuchProcess(err)
}

func isNoSuchProcess(err error) bool {
	return err == syscall.ESRCH
}
