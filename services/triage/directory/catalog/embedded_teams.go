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
This file bakes team_catalog.yaml into the compiled binary via the Go
embed package, mirroring the taxonomy catalog. The seed directory travels
with the executable; runtime mutations go through the Directory API and
the snapshot store.
*/

package catalog

import (
	_ "embed"
)

// TeamCatalog holds the raw bytes of 'team_catalog.yaml'.
//
// Populated at compile time via the embed directive. Pass these bytes to
// directory.ParseCatalog to obtain the seed directory.
//
//go:embed team_catalog.yaml
var TeamCatalog []byte
