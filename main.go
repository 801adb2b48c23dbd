package main

import "github.com/furisto/switchboard/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
