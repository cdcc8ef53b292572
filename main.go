package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/app"
	kernel "github.com/km-arc/go-beans/framework/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := kernel.New() // loads .env automatically
	if err != nil {
		panic(err)
	}
	log := application.Log

	err = application.Register(&app.AppServiceProvider{
		Members: []app.Member{
			{ID: 1, Name: "memberA", Grade: app.GradeVIP},
			{ID: 2, Name: "memberB", Grade: app.GradeBasic},
		},
	})
	if err != nil {
		log.Fatal("registering application beans", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
