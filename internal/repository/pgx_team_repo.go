package repository

import (
	"context"
	"time"

	"github.com/ddanshin/task-manager/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
)

type Team struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type TeamPatch struct {
	ID          int64   `db:"id"`
	Name        *string `db:"name"`
	Description *string `db:"description"`
}

type TeamMember struct {
	TeamID   int64     `db:"team_id"`
	UserID   int64     `db:"user_id"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

// MemberInfo is a membership row joined with the member's username.
type MemberInfo struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Role     string `db:"role"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) (*Team, error)
	Get(ctx context.Context, id int64) (*Team, error)
	List(ctx context.Context) ([]*Team, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, member *TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID int64) error
	DeleteMembers(ctx context.Context, teamID int64) error
	GetMembers(ctx context.Context, teamID int64) ([]*MemberInfo, error)
	GetMembership(ctx context.Context, teamID, userID int64) (*TeamMember, error)
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams", "name", "description"),
		im.Values(psql.Arg(team.Name), psql.Arg(team.Description)),
		im.Returning("id", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	created := *team
	if err = e.QueryRow(ctx, sql, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	return &created, nil
}

func (p *pgxTeamRepository) Get(ctx context.Context, id int64) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "description", "created_at"),
		sm.From("teams"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&team.ID, &team.Name, &team.Description, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) List(ctx context.Context) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "description", "created_at"),
		sm.From("teams"),
		sm.OrderBy("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		team := &Team{}
		if err = row.Scan(&team.ID, &team.Name, &team.Description, &team.CreatedAt); err != nil {
			return nil, err
		}
		return team, nil
	})
}

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 2)

	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.Description != nil {
		sets = append(sets, um.SetCol("description").ToArg(*patch.Description))
	}

	q := psql.Update(
		um.Table("teams"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning("id", "name", "description", "created_at"),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&team.ID, &team.Name, &team.Description, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) Delete(ctx context.Context, id int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("teams"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, member *TeamMember) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_members", "team_id", "user_id", "role"),
		im.Values(psql.Arg(member.TeamID), psql.Arg(member.UserID), psql.Arg(member.Role)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}

	return err
}

func (p *pgxTeamRepository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_members"),
		dm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("user_id").EQ(psql.Arg(userID))),
		))

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteMembers clears every membership row of the team. Deleting nothing is
// not an error.
func (p *pgxTeamRepository) DeleteMembers(ctx context.Context, teamID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_members"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTeamRepository) GetMembers(ctx context.Context, teamID int64) ([]*MemberInfo, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("tm.user_id", "u.username", "tm.role"),
		sm.From("team_members").As("tm"),
		sm.InnerJoin("users").As("u").On(psql.Quote("u", "id").EQ(psql.Quote("tm", "user_id"))),
		sm.Where(psql.Quote("tm", "team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("tm.joined_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*MemberInfo, error) {
		member := &MemberInfo{}
		if err = row.Scan(&member.UserID, &member.Username, &member.Role); err != nil {
			return nil, err
		}
		return member, nil
	})
}

func (p *pgxTeamRepository) GetMembership(ctx context.Context, teamID, userID int64) (*TeamMember, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "user_id", "role", "joined_at"),
		sm.From("team_members"),
		sm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("user_id").EQ(psql.Arg(userID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	member := &TeamMember{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&member.TeamID, &member.UserID, &member.Role, &member.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return member, nil
}
