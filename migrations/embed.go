// Package migrations хранит SQL-миграции схемы прямого бэкенда PostgreSQL.
package migrations

import "embed"

// Files — встроенные файлы миграций в формате golang-migrate.
//
//go:embed *.sql
var Files embed.FS
