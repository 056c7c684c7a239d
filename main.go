package main

import "econlint/cmd"

func main() {
	cmd.Execute()
}
