//go:build windows

package term

import (
	"os"

	"golang.org/x/sys/windows"
)

// fileWidth reads the console screen buffer of f.
func fileWidth(f *os.File) (int, bool) {
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(windows.Handle(f.Fd()), &info); err != nil {
		return 0, false
	}
	return int(info.Window.Right-info.Window.Left) + 1, true
}
