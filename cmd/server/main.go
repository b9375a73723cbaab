package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/buildinfo"
	"github.com/dmitrijs2005/fieldsync/internal/server"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		log.Fatalf("fieldsync-server: %v", err)
	}

	app.Run(ctx)
}
