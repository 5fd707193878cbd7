package main

import "github.com/waterbase/linkcrawler/cmd"

func main() {
	cmd.Execute()
}
