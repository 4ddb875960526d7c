// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bridges the build system and the runtime taxonomy registry. It
uses the Go embed package to bake taxonomy_catalog.yaml directly into the
compiled binary, so the seed catalog travels with the executable and
cannot drift from it on the host filesystem.
*/

package catalog

import (
	_ "embed"
)

// TaxonomyCatalog holds the raw bytes of 'taxonomy_catalog.yaml'.
//
// Populated at compile time via the embed directive. Pass these bytes to
// taxonomy.ParseCatalog to obtain the seed catalog.
//
//go:embed taxonomy_catalog.yaml
var TaxonomyCatalog []byte
