//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const binary = "atlasexport"

// Builds the atlasexport binary into bin/.
func (Build) CLI() error {
	out := filepath.Join("bin", binary)
	if _, err := executeCmd("go", withArgs("build", "-o", out, "./cmd/atlasexport"), withStream()); err != nil {
		return err
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Runs go mod tidy.
func (Build) Tidy() error {
	_, err := executeCmd("go", withArgs("mod", "tidy"))
	return err
}

// Runs all tests.
func Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs go vet on all packages.
func Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs vet and tests, then builds the binary.
func All() {
	mg.SerialDeps(Vet, Test, Build.CLI)
}
