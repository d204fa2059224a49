// Package loader registers the ui state store drivers via blank imports.
package loader

import (
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/json"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/memory"
	_ "github.com/MahdiBaghbani/pairinbox-go/internal/store/sqlite"
)
