package main

import (
	"context"
	"os"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/xaionaro-go/videoio/cmd/videoio/commands"
)

func main() {
	err := child_process_manager.InitializeChildProcessManager()
	if err != nil {
		panic(err)
	}
	defer child_process_manager.DisposeChildProcessManager()

	if err := commands.Root.ExecuteContext(context.Background()); err != nil {
		child_process_manager.DisposeChildProcessManager()
		os.Exit(1)
	}
}
