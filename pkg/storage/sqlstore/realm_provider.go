package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

type RealmProvider struct {
	conn  *ConnectionProvider
	stmts *realmStatements
}

var _ model.RealmProvider = (*RealmProvider)(nil)

func (p *RealmProvider) CreateRealm(ctx context.Context, realm model.Realm) (model.Realm, error) {
	realm.Name = strings.TrimSpace(realm.Name)
	if realm.Name == "" {
		return model.Realm{}, model.ErrInvalidRealm
	}
	if _, err := p.GetRealmByName(ctx, realm.Name); err == nil {
		return model.Realm{}, model.ErrRealmExists
	} else if !errors.Is(err, model.ErrRealmNotFound) {
		return model.Realm{}, err
	}

	if realm.ID == "" {
		realm.ID = uuid.NewString()
	}
	if realm.DateAdded.IsZero() {
		realm.DateAdded = time.Now().UTC()
	}

	err := p.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := execStmt(ctx, tx, p.stmts.insertRealm, realm.ID, realm.Name, realm.Enabled, realm.DateAdded); err != nil {
			return err
		}
		for _, name := range sortedKeys(realm.Attributes) {
			if err := execStmt(ctx, tx, p.stmts.insertAttribute, realm.ID, name, realm.Attributes[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Realm{}, storageError("create realm", err)
	}
	return realm.Clone(), nil
}

func (p *RealmProvider) GetRealm(ctx context.Context, id string) (model.Realm, error) {
	return p.getRealm(ctx, p.stmts.getRealm, id)
}

func (p *RealmProvider) GetRealmByName(ctx context.Context, name string) (model.Realm, error) {
	return p.getRealm(ctx, p.stmts.getByName, strings.TrimSpace(name))
}

func (p *RealmProvider) getRealm(ctx context.Context, stmt *sql.Stmt, arg string) (model.Realm, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return model.Realm{}, err
	}

	s := bound(ctx, q, stmt)
	realm, err := scanRealm(s.QueryRowContext(ctx, arg))
	closeBound(q, s)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Realm{}, model.ErrRealmNotFound
	}
	if err != nil {
		return model.Realm{}, storageError("get realm", err)
	}

	if realm.Attributes, err = p.attributes(ctx, q, realm.ID); err != nil {
		return model.Realm{}, err
	}
	return realm, nil
}

func (p *RealmProvider) ListRealms(ctx context.Context) ([]model.Realm, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return nil, err
	}

	realms, err := queryAll(ctx, q, p.stmts.listRealms, scanRealm)
	if err != nil {
		return nil, storageError("list realms", err)
	}
	for i := range realms {
		if realms[i].Attributes, err = p.attributes(ctx, q, realms[i].ID); err != nil {
			return nil, err
		}
	}
	return realms, nil
}

func (p *RealmProvider) RemoveRealm(ctx context.Context, id string) (bool, error) {
	removed := false
	err := p.conn.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []*sql.Stmt{p.stmts.deleteRealmConfig, p.stmts.deleteRealmComponents, p.stmts.deleteAttributes} {
			if err := execStmt(ctx, tx, stmt, id); err != nil {
				return err
			}
		}

		s := tx.StmtContext(ctx, p.stmts.deleteRealm)
		defer s.Close()
		result, err := s.ExecContext(ctx, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0
		return nil
	})
	if err != nil {
		return false, storageError("remove realm", err)
	}
	return removed, nil
}

func (p *RealmProvider) AddComponent(ctx context.Context, realmID string, component model.Component) (model.Component, error) {
	if _, err := p.GetRealm(ctx, realmID); err != nil {
		return model.Component{}, err
	}
	if component.ProviderID == "" || component.ProviderType == "" {
		return model.Component{}, model.ErrInvalidComponent
	}

	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	component.ParentID = realmID

	err := p.conn.WithTx(ctx, func(tx *sql.Tx) error {
		err := execStmt(ctx, tx, p.stmts.insertComponent,
			component.ID,
			realmID,
			component.Name,
			component.ProviderID,
			string(component.ProviderType),
			component.SubType,
		)
		if err != nil {
			return err
		}

		for _, name := range sortedKeys(component.Config) {
			for position, value := range component.Config[name] {
				if err := execStmt(ctx, tx, p.stmts.insertConfig, component.ID, name, position, value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.Component{}, storageError("add component", err)
	}
	return component.Clone(), nil
}

func (p *RealmProvider) GetComponent(ctx context.Context, realmID string, id string) (model.Component, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return model.Component{}, err
	}

	s := bound(ctx, q, p.stmts.getComponent)
	component, err := scanComponent(s.QueryRowContext(ctx, realmID, id))
	closeBound(q, s)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Component{}, model.ErrComponentNotFound
	}
	if err != nil {
		return model.Component{}, storageError("get component", err)
	}

	if component.Config, err = p.config(ctx, q, component.ID); err != nil {
		return model.Component{}, err
	}
	return component, nil
}

func (p *RealmProvider) ListComponents(ctx context.Context, realmID string, providerType provider.ProviderType) ([]model.Component, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return nil, err
	}

	components, err := queryAll(ctx, q, p.stmts.listComponents, scanComponent, realmID, string(providerType))
	if err != nil {
		return nil, storageError("list components", err)
	}
	for i := range components {
		if components[i].Config, err = p.config(ctx, q, components[i].ID); err != nil {
			return nil, err
		}
	}
	return components, nil
}

func (p *RealmProvider) RemoveComponent(ctx context.Context, realmID string, id string) (bool, error) {
	if _, err := p.GetComponent(ctx, realmID, id); err != nil {
		if errors.Is(err, model.ErrComponentNotFound) {
			return false, nil
		}
		return false, err
	}

	err := p.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := execStmt(ctx, tx, p.stmts.deleteConfig, id); err != nil {
			return err
		}
		return execStmt(ctx, tx, p.stmts.deleteComponent, realmID, id)
	})
	if err != nil {
		return false, storageError("remove component", err)
	}
	return true, nil
}

func (p *RealmProvider) Close() error {
	return nil
}

func (p *RealmProvider) attributes(ctx context.Context, q querier, realmID string) (map[string]string, error) {
	pairs, err := queryAll(ctx, q, p.stmts.listAttributes, scanPair, realmID)
	if err != nil {
		return nil, storageError("list realm attributes", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	attributes := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		attributes[pair[0]] = pair[1]
	}
	return attributes, nil
}

func (p *RealmProvider) config(ctx context.Context, q querier, componentID string) (map[string][]string, error) {
	pairs, err := queryAll(ctx, q, p.stmts.listConfig, scanPair, componentID)
	if err != nil {
		return nil, storageError("list component config", err)
	}

	config := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		config[pair[0]] = append(config[pair[0]], pair[1])
	}
	return config, nil
}

func scanRealm(row scanner) (model.Realm, error) {
	var realm model.Realm
	if err := row.Scan(&realm.ID, &realm.Name, &realm.Enabled, &realm.DateAdded); err != nil {
		return model.Realm{}, err
	}
	realm.DateAdded = realm.DateAdded.UTC()
	return realm, nil
}

func scanComponent(row scanner) (model.Component, error) {
	var (
		component    model.Component
		providerType string
	)
	if err := row.Scan(
		&component.ID,
		&component.ParentID,
		&component.Name,
		&component.ProviderID,
		&providerType,
		&component.SubType,
	); err != nil {
		return model.Component{}, err
	}
	component.ProviderType = provider.ProviderType(providerType)
	return component, nil
}

func scanPair(row scanner) ([2]string, error) {
	var pair [2]string
	err := row.Scan(&pair[0], &pair[1])
	return pair, err
}

func execStmt(ctx context.Context, q querier, stmt *sql.Stmt, args ...any) error {
	s := bound(ctx, q, stmt)
	defer closeBound(q, s)
	_, err := s.ExecContext(ctx, args...)
	return err
}

// queryAll reads every row before returning so callers may issue further
// statements on a single connection.
func queryAll[T any](ctx context.Context, q querier, stmt *sql.Stmt, scan func(scanner) (T, error), args ...any) ([]T, error) {
	s := bound(ctx, q, stmt)
	defer closeBound(q, s)

	rows, err := s.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func storageError(op string, err error) error {
	var coded *oerrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return oerrors.Wrap(oerrors.CodeStorageUnavailable, "sqlstore: "+op, err)
}
