// SPDX-License-Identifier: AGPL-3.0-only
package database

import "embed"

//go:embed schema/*.sql
var Migrations embed.FS

const MigrationsDir = "schema"
