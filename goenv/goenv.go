// Package goenv returns environment variables that are used in various parts
// of the upload pipeline. You can query the variables used here with
// `riscv-upload env`.
package goenv

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Keys is a slice of all available environment variable keys.
var Keys = []string{
	"BUILD_DIR",
	"PACKAGES_DIR",
	"PYTHONEXE",
	"TOOLCHAIN_PREFIX",
	"VERBOSE",
}

// Environment variables that override the computed defaults.
var overrides = map[string]string{
	"BUILD_DIR":        "RISCV_BUILD_DIR",
	"PACKAGES_DIR":     "RISCV_PACKAGES_DIR",
	"PYTHONEXE":        "PYTHONEXE",
	"TOOLCHAIN_PREFIX": "RISCV_TOOLCHAIN_PREFIX",
	"VERBOSE":          "RISCV_VERBOSE",
}

// Get returns a single environment variable, possibly calculating it on-demand.
// The empty string is returned for unknown environment variables.
func Get(name string) string {
	if env, ok := overrides[name]; ok {
		if value := os.Getenv(env); value != "" {
			return value
		}
	}
	switch name {
	case "BUILD_DIR":
		return filepath.Join(".pio", "build")
	case "PACKAGES_DIR":
		// Tool packages (openocd, bl60x-flash) live next to the user cache,
		// the same place the package manager installs them.
		dir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".pio", "packages")
		}
		return filepath.Join(dir, ".platformio", "packages")
	case "PYTHONEXE":
		if runtime.GOOS == "windows" {
			return "python.exe"
		}
		return "python3"
	case "TOOLCHAIN_PREFIX":
		return "riscv64-unknown-elf-"
	case "VERBOSE":
		return "0"
	default:
		return ""
	}
}

// Verbose reports whether the VERBOSE variable is set to a truthy value.
// Anything that doesn't parse as a number or a boolean counts as false.
func Verbose() bool {
	value := Get("VERBOSE")
	if n, err := strconv.Atoi(value); err == nil {
		return n != 0
	}
	b, _ := strconv.ParseBool(value)
	return b
}
