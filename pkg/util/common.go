// Package util carries small helpers shared by the command binaries.
package util

import "fmt"

// PrintBuildInfo writes the ldflags-injected build metadata to stdout.
// Empty values print as "N/A" so the banner keeps its shape in dev builds.
func PrintBuildInfo(version, date, commit string) {
	fmt.Printf("Build version: %s\nBuild date: %s\nBuild commit: %s\n",
		orNA(version), orNA(date), orNA(commit))
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
