//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

// pkg/shell/term_other.go
package shell

func isTerminalFd(fd uintptr) bool {
	return false
}
