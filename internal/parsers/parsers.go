// Package parsers imports all parser packages to trigger their init() registration.
// Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "aisdb/internal/parsers/classb"
	_ "aisdb/internal/parsers/position"
	_ "aisdb/internal/parsers/staticdata"
	_ "aisdb/internal/parsers/voyage"
)
