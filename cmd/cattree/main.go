package main

import "github.com/loog-project/cattree/cmd"

func main() {
	cmd.Execute()
}
