// Package migrations embeds the audit ledger's postgres schema as an
// embedded FS consumed by golang-migrate's iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
