package main

import "github.com/nfrund/goby-chat/cmd/chat-cli/cmd"

func main() {
	cmd.Execute()
}
