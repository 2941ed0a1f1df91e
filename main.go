package main

import "github.com/mselser95/polybridge/cmd"

func main() {
	cmd.Execute()
}
