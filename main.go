// Command csim replays a memory trace against a set-associative cache with
// LRU replacement.
package main

import "github.com/sarchlab/cachesim/cmd"

func main() {
	cmd.Execute()
}
