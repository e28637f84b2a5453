package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePrefix = "kinetic/"

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "arch-check: passed\n")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: architecture violations:\n")
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	result := make([]listedPackage, 0, 64)
	for {
		var pkg listedPackage
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath == "" {
			continue
		}
		result = append(result, pkg)
	}

	return result, nil
}

func collectViolations(packages []listedPackage) []string {
	found := make(map[string]struct{})

	for _, pkg := range packages {
		// Test binaries and test variants show up as "pkg.test" and
		// "pkg [pkg.test]"; everything they import is test-only.
		importer := pkg.ImportPath
		testVariant := strings.HasSuffix(importer, ".test") || strings.Contains(importer, " [")
		if index := strings.Index(importer, " ["); index >= 0 {
			importer = importer[:index]
		}

		record := func(imports []string, testOnly bool) {
			for _, imported := range imports {
				reason := violationReason(importer, imported, testOnly)
				if reason == "" {
					continue
				}
				entry := fmt.Sprintf("%s -> %s (%s)", importer, imported, reason)
				found[entry] = struct{}{}
			}
		}

		record(pkg.Imports, testVariant)
		record(pkg.TestImports, true)
		record(pkg.XTestImports, true)
	}

	violations := make([]string, 0, len(found))
	for violation := range found {
		violations = append(violations, violation)
	}
	sort.Strings(violations)

	return violations
}

// violationReason enforces the layering contract: pkg/kinetic defines the
// shared contracts and depends on nothing internal, internal/kernel stays
// driver-agnostic, and modules talk to the rest of the system only through
// pkg/kinetic contracts. Module tests may import internal drivers as
// fixtures.
func violationReason(importer, imported string, testOnly bool) string {
	if strings.HasPrefix(importer, modulePrefix+"pkg/kinetic") &&
		strings.HasPrefix(imported, modulePrefix+"internal/") {
		return "pkg/kinetic must not import internal/*"
	}

	if strings.HasPrefix(importer, modulePrefix+"internal/kernel") &&
		strings.HasPrefix(imported, modulePrefix+"internal/driver") {
		return "internal/kernel must not import internal/driver/*"
	}

	if strings.HasPrefix(importer, modulePrefix+"internal/driver") &&
		strings.HasPrefix(imported, modulePrefix+"internal/kernel") {
		return "internal/driver/* must not import internal/kernel"
	}

	if !testOnly &&
		strings.HasPrefix(importer, modulePrefix+"modules/") &&
		strings.HasPrefix(imported, modulePrefix+"internal/") {
		return "modules/* must not import internal/* outside tests"
	}

	return ""
}
