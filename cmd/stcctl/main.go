// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Command stcctl drives a Spirent TestCenter session from the shell.
package main

import "github.com/netascode/go-testcenter/cmd/stcctl/cmd"

func main() {
	cmd.Execute()
}
