package main

import (
	"os"
	"os/exec"
	"runtime"
)

func runCmd(name string, arg ...string) error {
	cmd := exec.Command(name, arg...)
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

// ClearTerminal wipes the screen before the live line is drawn. Failures are
// ignored; the line still renders below whatever was there.
func ClearTerminal() {
	switch runtime.GOOS {
	case "windows":
		_ = runCmd("cmd", "/c", "cls")
	default:
		_ = runCmd("clear")
	}
}

func UserHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		return home + "\\"
	}
	return os.Getenv("HOME") + "/"
}
