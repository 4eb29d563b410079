package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/mora2/cartoonify/internal/bootstrap"
	"github.com/mora2/cartoonify/internal/infra"
	"github.com/mora2/cartoonify/internal/platform/lambdahttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	handler, err := bootstrap.NewHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build handler")
	}
	lambda.Start(lambdahttp.Handler(handler))
}
