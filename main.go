package main

import "github.com/jetstack/dcc-trustlist/cmd"

func main() {
	cmd.Execute()
}
