package main

import (
	"context"
	"flag"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/models"
	"github.com/sopt-makers/sopt-push-notification/services"
)

// sweeper removes every registration for one platform: broadcast
// subscriptions, platform endpoints, and their token pairs. Listings
// are snapshotted to JSON files before anything is deleted.
func main() {
	platform := flag.String("platform", string(models.PlatformIOS), "platform to sweep (iOS or Android)")
	outDir := flag.String("out", ".", "directory for listing snapshots")
	flag.Parse()

	if !models.ValidPlatform(*platform) || *platform == "" {
		log.Fatal().Str("platform", *platform).Msg("unknown platform")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx := context.Background()
	awsCfg, err := cfg.LoadAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load aws config failed")
	}

	sweeper := services.NewSweeperService(
		awssns.NewFromConfig(awsCfg),
		dynamodb.NewFromConfig(awsCfg),
		cfg,
		*outDir,
	)

	if err := sweeper.Sweep(ctx, models.Platform(*platform)); err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}
	log.Info().Str("platform", *platform).Msg("sweep finished")
}
