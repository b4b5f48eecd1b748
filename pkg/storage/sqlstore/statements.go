package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Placeholders are numbered and appear in ascending order so the same text
// binds positionally on both sqlite3 and pgx.
const (
	insertRealmQuery = `
INSERT INTO realm (
  id, name, enabled, date_added
) VALUES ($1, $2, $3, $4)
`

	realmColumns = `id, name, enabled, date_added`

	getRealmQuery       = `SELECT ` + realmColumns + ` FROM realm WHERE id = $1`
	getRealmByNameQuery = `SELECT ` + realmColumns + ` FROM realm WHERE name = $1`
	listRealmsQuery     = `SELECT ` + realmColumns + ` FROM realm ORDER BY name`
	deleteRealmQuery    = `DELETE FROM realm WHERE id = $1`

	insertRealmAttributeQuery  = `INSERT INTO realm_attribute (realm_id, name, value) VALUES ($1, $2, $3)`
	listRealmAttributesQuery   = `SELECT name, value FROM realm_attribute WHERE realm_id = $1`
	deleteRealmAttributesQuery = `DELETE FROM realm_attribute WHERE realm_id = $1`

	insertComponentQuery = `
INSERT INTO component (
  id, realm_id, name, provider_id, provider_type, sub_type
) VALUES ($1, $2, $3, $4, $5, $6)
`

	componentColumns = `id, realm_id, name, provider_id, provider_type, sub_type`

	getComponentQuery   = `SELECT ` + componentColumns + ` FROM component WHERE realm_id = $1 AND id = $2`
	listComponentsQuery = `
SELECT ` + componentColumns + `
FROM component
WHERE realm_id = $1 AND ($2 = '' OR provider_type = $2)
ORDER BY id
`
	deleteComponentQuery       = `DELETE FROM component WHERE realm_id = $1 AND id = $2`
	deleteRealmComponentsQuery = `DELETE FROM component WHERE realm_id = $1`

	insertComponentConfigQuery = `
INSERT INTO component_config (
  component_id, name, position, value
) VALUES ($1, $2, $3, $4)
`
	listComponentConfigQuery        = `SELECT name, value FROM component_config WHERE component_id = $1 ORDER BY name, position`
	deleteComponentConfigQuery      = `DELETE FROM component_config WHERE component_id = $1`
	deleteRealmComponentConfigQuery = `
DELETE FROM component_config
WHERE component_id IN (SELECT id FROM component WHERE realm_id = $1)
`

	insertUserQuery = `
INSERT INTO user_entity (
  id, realm_id, username, email, enabled, federation_link, date_added
) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

	userColumns = `id, realm_id, username, email, enabled, federation_link, date_added`

	getUserQuery           = `SELECT ` + userColumns + ` FROM user_entity WHERE realm_id = $1 AND id = $2`
	getUserByUsernameQuery = `SELECT ` + userColumns + ` FROM user_entity WHERE realm_id = $1 AND username = $2`
	listUsersQuery         = `SELECT ` + userColumns + ` FROM user_entity WHERE realm_id = $1 ORDER BY username`
	countUsersQuery        = `SELECT COUNT(*) FROM user_entity WHERE realm_id = $1`
	deleteUserQuery        = `DELETE FROM user_entity WHERE realm_id = $1 AND id = $2`
)

type realmStatements struct {
	insertRealm *sql.Stmt
	getRealm    *sql.Stmt
	getByName   *sql.Stmt
	listRealms  *sql.Stmt
	deleteRealm *sql.Stmt

	insertAttribute  *sql.Stmt
	listAttributes   *sql.Stmt
	deleteAttributes *sql.Stmt

	insertComponent       *sql.Stmt
	getComponent          *sql.Stmt
	listComponents        *sql.Stmt
	deleteComponent       *sql.Stmt
	deleteRealmComponents *sql.Stmt

	insertConfig      *sql.Stmt
	listConfig        *sql.Stmt
	deleteConfig      *sql.Stmt
	deleteRealmConfig *sql.Stmt
}

type userStatements struct {
	insertUser        *sql.Stmt
	getUser           *sql.Stmt
	getUserByUsername *sql.Stmt
	listUsers         *sql.Stmt
	countUsers        *sql.Stmt
	deleteUser        *sql.Stmt
}

type prepareStatementSpec[T any] struct {
	label  string
	query  string
	assign func(*T, *sql.Stmt)
}

var realmStatementSpecs = []prepareStatementSpec[realmStatements]{
	{"insert realm", insertRealmQuery, func(s *realmStatements, stmt *sql.Stmt) { s.insertRealm = stmt }},
	{"get realm", getRealmQuery, func(s *realmStatements, stmt *sql.Stmt) { s.getRealm = stmt }},
	{"get realm by name", getRealmByNameQuery, func(s *realmStatements, stmt *sql.Stmt) { s.getByName = stmt }},
	{"list realms", listRealmsQuery, func(s *realmStatements, stmt *sql.Stmt) { s.listRealms = stmt }},
	{"delete realm", deleteRealmQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteRealm = stmt }},
	{"insert realm attribute", insertRealmAttributeQuery, func(s *realmStatements, stmt *sql.Stmt) { s.insertAttribute = stmt }},
	{"list realm attributes", listRealmAttributesQuery, func(s *realmStatements, stmt *sql.Stmt) { s.listAttributes = stmt }},
	{"delete realm attributes", deleteRealmAttributesQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteAttributes = stmt }},
	{"insert component", insertComponentQuery, func(s *realmStatements, stmt *sql.Stmt) { s.insertComponent = stmt }},
	{"get component", getComponentQuery, func(s *realmStatements, stmt *sql.Stmt) { s.getComponent = stmt }},
	{"list components", listComponentsQuery, func(s *realmStatements, stmt *sql.Stmt) { s.listComponents = stmt }},
	{"delete component", deleteComponentQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteComponent = stmt }},
	{"delete realm components", deleteRealmComponentsQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteRealmComponents = stmt }},
	{"insert component config", insertComponentConfigQuery, func(s *realmStatements, stmt *sql.Stmt) { s.insertConfig = stmt }},
	{"list component config", listComponentConfigQuery, func(s *realmStatements, stmt *sql.Stmt) { s.listConfig = stmt }},
	{"delete component config", deleteComponentConfigQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteConfig = stmt }},
	{"delete realm component config", deleteRealmComponentConfigQuery, func(s *realmStatements, stmt *sql.Stmt) { s.deleteRealmConfig = stmt }},
}

var userStatementSpecs = []prepareStatementSpec[userStatements]{
	{"insert user", insertUserQuery, func(s *userStatements, stmt *sql.Stmt) { s.insertUser = stmt }},
	{"get user", getUserQuery, func(s *userStatements, stmt *sql.Stmt) { s.getUser = stmt }},
	{"get user by username", getUserByUsernameQuery, func(s *userStatements, stmt *sql.Stmt) { s.getUserByUsername = stmt }},
	{"list users", listUsersQuery, func(s *userStatements, stmt *sql.Stmt) { s.listUsers = stmt }},
	{"count users", countUsersQuery, func(s *userStatements, stmt *sql.Stmt) { s.countUsers = stmt }},
	{"delete user", deleteUserQuery, func(s *userStatements, stmt *sql.Stmt) { s.deleteUser = stmt }},
}

// prepareStatements prepares every spec on db. On failure the statements
// prepared so far are closed.
func prepareStatements[T any](ctx context.Context, db *sql.DB, target *T, specs []prepareStatementSpec[T]) (prepared []*sql.Stmt, err error) {
	if db == nil {
		return nil, ErrNilDB
	}

	prepared = make([]*sql.Stmt, 0, len(specs))
	defer func() {
		if err != nil {
			_ = closeStatements(prepared...)
			prepared = nil
		}
	}()

	for _, spec := range specs {
		stmt, prepErr := db.PrepareContext(ctx, spec.query)
		if prepErr != nil {
			return prepared, fmt.Errorf("sqlstore: prepare %s statement: %w", spec.label, prepErr)
		}
		prepared = append(prepared, stmt)
		spec.assign(target, stmt)
	}
	return prepared, nil
}

func closeStatements(stmts ...*sql.Stmt) error {
	var errs []error
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bound returns stmt bound to q when q is a transaction. The caller closes
// the returned statement.
func bound(ctx context.Context, q querier, stmt *sql.Stmt) *sql.Stmt {
	if tx, ok := q.(*sql.Tx); ok {
		return tx.StmtContext(ctx, stmt)
	}
	return stmt
}

func closeBound(q querier, stmt *sql.Stmt) {
	if _, ok := q.(*sql.Tx); ok {
		_ = stmt.Close()
	}
}

type scanner interface {
	Scan(dest ...any) error
}
