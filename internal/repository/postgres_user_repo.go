package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/skibase/internal/model"
)

const userColumns = `id, email, role, password_hash, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindOrCreateOAuthAdmin は管理者ユーザーを条件付きINSERTで作成する。
// ON CONFLICT DO NOTHINGで挿入がスキップされた場合は既存行を再取得する。
// check-then-insertを行わないため、同時初回ログインでも行は1件しか作られない。
func (r *PostgresUserRepo) FindOrCreateOAuthAdmin(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, role, password_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING `+userColumns,
		uuid.NewString(), email, string(model.RoleAdmin), passwordHash,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert oauth user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// 競合した行がINSERTとSELECTの間に削除された場合
		return nil, fmt.Errorf("user %s disappeared after conflicting insert", email)
	}
	return user, nil
}

// UpsertAdmin は管理者ユーザーを作成し、既存の場合はパスワードと権限を更新する。
func (r *PostgresUserRepo) UpsertAdmin(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, role, password_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE
		 SET role = EXCLUDED.role, password_hash = EXCLUDED.password_hash, updated_at = now()
		 RETURNING `+userColumns,
		uuid.NewString(), email, string(model.RoleAdmin), passwordHash,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert admin user: %w", err)
	}
	return user, nil
}

// scanUser は1行をUserに読み込む。行が無い場合はnil, nilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var role string
	err := row.Scan(&user.ID, &user.Email, &role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
