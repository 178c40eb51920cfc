package main

import "github.com/lockplane/storemigrate/cmd"

func main() {
	cmd.Execute()
}
