package meta

// schemas.go - cube schema lifecycle in the relational store

import (
	"context"
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validSchemaName guards schema names interpolated into DDL. Schema names
// are derived from UUIDs and build ids, never from user input, but the
// check keeps a corrupted id from reaching the server.
func validSchemaName(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid schema name %q", name)
	}
	return nil
}

// CreateSchema creates an empty schema, dropping any stale one first.
func (s *Store) CreateSchema(ctx context.Context, name string) error {
	if err := validSchemaName(name); err != nil {
		return err
	}
	return s.execTx(ctx, []string{
		fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, name),
		fmt.Sprintf(`CREATE SCHEMA %q`, name),
	})
}

// DropSchema removes a schema and everything in it.
func (s *Store) DropSchema(ctx context.Context, name string) error {
	if err := validSchemaName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, name)); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", name, err)
	}
	return nil
}

// SchemaExists reports whether a schema exists.
func (s *Store) SchemaExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, name).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", name, err)
	}
	return exists, nil
}

// PublishSchema atomically replaces the canonical schema with the scratch
// schema. Both the drop of the old canonical schema and the rename happen
// in one transaction, so readers see either the fully-old or fully-new
// cube, never an intermediate state.
func (s *Store) PublishSchema(ctx context.Context, scratch, canonical string) error {
	if err := validSchemaName(scratch); err != nil {
		return err
	}
	if err := validSchemaName(canonical); err != nil {
		return err
	}
	return s.execTx(ctx, []string{
		fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, canonical),
		fmt.Sprintf(`ALTER SCHEMA %q RENAME TO %q`, scratch, canonical),
	})
}

// ExecSchemaDDL runs builder-generated DDL statements (view and filter
// table creation) in one transaction.
func (s *Store) ExecSchemaDDL(ctx context.Context, stmts []string) error {
	return s.execTx(ctx, stmts)
}
