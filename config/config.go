package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every process-wide setting, loaded once at startup and
// passed by reference into each service constructor.
type Config struct {
	Port string

	AWSRegion  string
	TokenTable string

	AllTopicArn            string
	PlatformApplicationIOS string
	PlatformApplicationAnd string

	AppWebhookURL       string
	OperationWebhookURL string

	// JWTSecret enables bearer auth for calling services when non-empty.
	JWTSecret string
}

// Load reads the environment (optionally seeded from a .env file) into a
// Config. Webhook URLs and the auth secret stay optional.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		AWSRegion:              getEnv("AWS_REGION", "ap-northeast-2"),
		TokenTable:             os.Getenv("DYNAMODB_TABLE"),
		AllTopicArn:            os.Getenv("ALL_TOPIC_ARN"),
		PlatformApplicationIOS: os.Getenv("PLATFORM_APPLICATION_IOS"),
		PlatformApplicationAnd: os.Getenv("PLATFORM_APPLICATION_ANDROID"),
		AppWebhookURL:          os.Getenv("APP_SERVER_URL"),
		OperationWebhookURL:    os.Getenv("OPERATION_SERVER_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
	}

	if cfg.TokenTable == "" {
		return nil, fmt.Errorf("DYNAMODB_TABLE is not set")
	}
	if cfg.AllTopicArn == "" {
		return nil, fmt.Errorf("ALL_TOPIC_ARN is not set")
	}

	return cfg, nil
}

// LoadAWS builds the shared AWS client configuration for the configured
// region. The DynamoDB and SNS clients are created from this one config.
func (c *Config) LoadAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
