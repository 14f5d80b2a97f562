package main

import "github.com/gkatanacio/bulkdl/cmd"

func main() {
	cmd.Execute()
}
