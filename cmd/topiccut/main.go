package main

import "github.com/forPelevin/topiccut/internal/cli"

func main() {
	cli.Main()
}
