package main

import "github.com/Another0Noob/peertube-import/cmd"

func main() {
	cmd.Execute()
}
