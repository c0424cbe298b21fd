package cmd

import (
	"strings"

	"github.com/geomail/geomail/pkg/persistence"
	"github.com/geomail/geomail/pkg/persistence/file"
	"github.com/geomail/geomail/pkg/persistence/memory"
)

var supportedPersistenceProviders = []string{"file", "memory"}

func NewPersistence(databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	case "memory":
		return memory.NewPersistence()
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
