package main

import (
	"context"
	"os"

	"speech-rehab-service/cmd/rehabctl/commands"
)

func main() {
	if err := commands.Root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
