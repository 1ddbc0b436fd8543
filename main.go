package main

import "github.com/pders01/guide-sync/cmd"

func main() {
	cmd.Execute()
}
