// Package config reads the environment variables the core needs. It is
// deliberately thin: file discovery, schema merging, and hot reload are
// out of scope, but the runtime still needs its handful of
// environment-sourced settings.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// SearchProviderKind selects which search backend the core's search
// client talks to.
type SearchProviderKind string

const (
	SearchProviderMock  SearchProviderKind = "mock"
	SearchProviderRealA SearchProviderKind = "real-A"
	SearchProviderRealB SearchProviderKind = "real-B"
)

// Config holds the environment-sourced settings.
type Config struct {
	LLMAPIKey      string
	SearchProvider SearchProviderKind
	SearchAPIKey   string
	SiteURL        string
}

// Load reads a .env file if present via godotenv, then layers
// environment variables on top. A missing .env file is not an error;
// explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	provider := SearchProviderKind(os.Getenv("SEARCH_PROVIDER"))
	if provider == "" {
		provider = SearchProviderMock
	}
	if err := validateProvider(provider); err != nil {
		return nil, err
	}

	return &Config{
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		SearchProvider: provider,
		SearchAPIKey:   os.Getenv("SEARCH_API_KEY"),
		SiteURL:        os.Getenv("SITE_URL"),
	}, nil
}

func validateProvider(p SearchProviderKind) error {
	switch p {
	case SearchProviderMock, SearchProviderRealA, SearchProviderRealB:
		return nil
	default:
		return fmt.Errorf("config: unknown SEARCH_PROVIDER %q (want mock, real-A, or real-B)", p)
	}
}
