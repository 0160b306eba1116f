// The main package for the soundleaf executable.
package main

import "github.com/soundleaf/soundleaf/cmd"

func main() {
	cmd.Execute()
}
