// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS

// Tables lists the tables the bot cannot run without.
var Tables = []string{"users", "subjects", "labs", "lab_files"}
