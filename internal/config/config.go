// Package config carries the endpoint configuration of the chat client.
// The library itself only ever receives a Config value; reading the process
// environment is left to the binary entrypoint.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config names every external endpoint the client talks to.
type Config struct {
	// SocketURL is the websocket endpoint of the message broker.
	SocketURL string `envconfig:"SOCKET_URL" default:"ws://localhost:15674/ws"`
	// BackendBaseURL is the chat-room REST API.
	BackendBaseURL string `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8080"`
	// LambdaBaseURL is the presigned-upload file service.
	LambdaBaseURL string `envconfig:"LAMBDA_BASE_URL" default:"http://localhost:9000"`
	// CloudFrontBaseURL prefixes the public URL of uploaded attachments.
	CloudFrontBaseURL string `envconfig:"CLOUDFRONT_BASE_URL" default:"http://localhost:9001"`
}

// Load reads configuration from the environment, honoring a .env file when
// present. Variables are prefixed CHATWIRE_, e.g. CHATWIRE_SOCKET_URL.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("chatwire", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
