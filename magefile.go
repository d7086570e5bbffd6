//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	appName = "mosi-web"
)

var Default = Run

// Run: go run the web server.
func Run() error {
	mg.Deps(Tidy)
	fmt.Println("Running (go run) ...")
	return sh.RunV("go", "run", "./cmd/web")
}

// Build: compile server and tools into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(binDir, appName)
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	fmt.Println("Building", out, "...")
	if err := sh.RunV("go", "build", "-o", out, "./cmd/web"); err != nil {
		return err
	}
	if err := sh.RunV("go", "build", "-o", filepath.Join(binDir, "createtable"), "./cmd/tools/createtable"); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", filepath.Join(binDir, "mockgateway"), "./cmd/tools/mockgateway")
}

// Test: run all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Tidy: go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// Migrate: create/upgrade tables (needs DB_DSN).
func Migrate() error {
	return sh.RunV("go", "run", "./cmd/tools/createtable")
}

// MockGateway: run the local payment provider mock on :9090.
func MockGateway() error {
	return sh.RunV("go", "run", "./cmd/tools/mockgateway")
}

// Clean: remove build output.
func Clean() error {
	return os.RemoveAll(binDir)
}
