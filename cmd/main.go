package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/contractlens-backend/internal/app"
	"github.com/yungbote/contractlens-backend/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	err = a.Run(ctx)
	if err != nil {
		a.Log.Error("app exited", "error", err)
	}
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}
