package main

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/config"
	"github.com/sopt-makers/sopt-push-notification/services"
)

// paircheck scans the token table and reports registrations whose
// by-user and by-device records have diverged. It never repairs
// anything; it exits non-zero when damage is found.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx := context.Background()
	awsCfg, err := cfg.LoadAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load aws config failed")
	}

	checker := services.NewConsistencyService(dynamodb.NewFromConfig(awsCfg), cfg)
	report, err := checker.CheckPairs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("pair check failed")
	}

	for _, issue := range report.Issues {
		log.Warn().Str("pk", issue.PK).Str("sk", issue.SK).Msg(issue.Reason)
	}
	log.Info().Int("pairs", report.Pairs).Int("issues", len(report.Issues)).Msg("pair check finished")

	if !report.Clean() {
		os.Exit(1)
	}
}
