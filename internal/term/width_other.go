//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package term

import "os"

func fileWidth(*os.File) (int, bool) {
	return 0, false
}
