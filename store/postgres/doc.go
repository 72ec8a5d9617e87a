// Package postgres implements the job and league stores on PostgreSQL
// using pgx/v5. Schema changes live in migrations/*.sql and are applied in
// filename order by Store.Migrate. The transactions table relies on
// UNIQUE NULLS NOT DISTINCT and needs PostgreSQL 15 or newer.
package postgres
