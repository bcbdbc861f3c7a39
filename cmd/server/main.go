package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/controllers"
	"github.com/sopt-makers/sopt-push-notification/routes"
	"github.com/sopt-makers/sopt-push-notification/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	awsCfg, err := cfg.LoadAWS(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("load aws config failed")
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg)
	snsClient := awssns.NewFromConfig(awsCfg)

	index := services.NewTokenIndex(ddbClient, cfg)
	endpoints := services.NewEndpointService(snsClient, cfg)
	audit := services.NewAuditService(ddbClient, cfg)
	registration := services.NewRegistrationService(index, endpoints, audit)
	dispatch := services.NewDispatchService(index, snsClient, services.NewMessageFactory(), audit, services.NewWebhookService(cfg), cfg)

	push := controllers.NewPushController(registration, dispatch)
	feedback := controllers.NewFeedbackController(registration)

	r := routes.SetupRouter(cfg, push, feedback)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
