package main

import (
	"fmt"
	"os"
)

func run() int {
	fmt.Println("working")
	return 1
}

func main() {
	defer fmt.Println("cleanup")

	if run() != 0 {
		os.Exit(1) // want `os.Exit called directly in main`
	}

	// Literals are exempt: the deferred cleanup above still runs.
	f := func() {
		os.Exit(2)
	}
	_ = f

	exit()
}

// exit is not main.main, so the call below is fine.
func exit() {
	os.Exit(0)
}
