package main

import (
	"context"
	stdlog "log"

	"github.com/hcommons/membersync/cmd/syncctl/cmd"
	"github.com/hcommons/membersync/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("membersync-syncctl")
	if err != nil {
		stdlog.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			stdlog.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
