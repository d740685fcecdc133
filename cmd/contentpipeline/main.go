package main

import "ContentPipeline/cmd/contentpipeline/commands"

func main() {
	commands.Execute()
}
