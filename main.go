// Copyright (c) the forklift authors
// Licensed under the MIT license

package main

import "github.com/svema/forklift/cmd"

// version is overridden by the linker in release builds.
var version = "dev"

func main() {
	cmd.Execute(version)
}
