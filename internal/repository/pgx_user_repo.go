package repository

import (
	"context"
	"time"

	"github.com/ddanshin/task-manager/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash []byte    `db:"password_hash"`
	FirstName    *string   `db:"first_name"`
	LastName     *string   `db:"last_name"`
	Email        *string   `db:"email"`
	Location     *string   `db:"location"`
	CreatedAt    time.Time `db:"created_at"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (p *pgxUserRepository) Create(ctx context.Context, user *User) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users", "username", "password_hash", "first_name", "last_name", "email", "location"),
		im.Values(
			psql.Arg(user.Username),
			psql.Arg(user.PasswordHash),
			psql.Arg(user.FirstName),
			psql.Arg(user.LastName),
			psql.Arg(user.Email),
			psql.Arg(user.Location),
		),
		im.Returning("id", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	created := *user
	if err = e.QueryRow(ctx, sql, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	return &created, nil
}

func (p *pgxUserRepository) Get(ctx context.Context, id int64) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "username", "password_hash", "first_name", "last_name", "email", "location", "created_at"),
		sm.From("users"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return p.scanUser(e.QueryRow(ctx, sql, args...))
}

func (p *pgxUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "username", "password_hash", "first_name", "last_name", "email", "location", "created_at"),
		sm.From("users"),
		sm.Where(psql.Quote("username").EQ(psql.Arg(username))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return p.scanUser(e.QueryRow(ctx, sql, args...))
}

func (p *pgxUserRepository) scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Location,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
