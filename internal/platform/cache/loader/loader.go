// Package loader registers cache drivers via blank imports.
// Import this package to ensure the default cache drivers are available.
//
// Usage in main.go:
//
//	import _ "github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache/loader"
package loader

import (
	// Register the memory counter driver
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache/memory"

	// Register the redis/valkey counter driver
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache/redis"
)
