// Package loader triggers service and interceptor registration via blank imports.
// Import this package to ensure all services are registered with the registry.
package loader

import (
	// Interceptors must register before services look them up in New.
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/interceptors/ratelimit"

	_ "github.com/MahdiBaghbani/pairinbox-go/internal/services/api"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/services/ui"
)
