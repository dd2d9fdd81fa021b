package main

import "github.com/adslot/leasekeeper/internal/cli"

func main() {
	cli.Execute()
}
