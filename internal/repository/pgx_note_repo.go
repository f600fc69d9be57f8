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

type Note struct {
	ID        int64      `db:"id"`
	Title     *string    `db:"title"`
	Content   string     `db:"content"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
	CreatedBy int64      `db:"created_by"`
}

type NotePatch struct {
	ID      int64   `db:"id"`
	Title   *string `db:"title"`
	Content *string `db:"content"`
}

type NoteRepository interface {
	Create(ctx context.Context, note *Note) (*Note, error)
	Get(ctx context.Context, id int64) (*Note, error)
	Patch(ctx context.Context, patch *NotePatch) (*Note, error)
	Delete(ctx context.Context, id int64) error
	ListByCreator(ctx context.Context, userID int64) ([]*Note, error)
	ListShared(ctx context.Context, userID int64) ([]*Note, error)
	ListByTask(ctx context.Context, taskID int64) ([]*Note, error)
	Share(ctx context.Context, noteID, userID int64) error
	IsSharedWith(ctx context.Context, noteID, userID int64) (bool, error)
	DeleteShares(ctx context.Context, noteID int64) error
	LinkTask(ctx context.Context, noteID, taskID int64) error
	UnlinkTask(ctx context.Context, noteID, taskID int64) error
	GetTaskLinks(ctx context.Context, noteID int64) ([]int64, error)
	DeleteTaskLinks(ctx context.Context, noteID int64) error
	DeleteTaskLinksByTeam(ctx context.Context, teamID int64) error
}

type pgxNoteRepository struct {
	pool *pgxpool.Pool
}

func NewPgxNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &pgxNoteRepository{pool: pool}
}

var noteColumns = []any{"id", "title", "content", "created_at", "updated_at", "created_by"}

func (p *pgxNoteRepository) Create(ctx context.Context, note *Note) (*Note, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("notes", "title", "content", "created_by"),
		im.Values(psql.Arg(note.Title), psql.Arg(note.Content), psql.Arg(note.CreatedBy)),
		im.Returning("id", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	created := *note
	if err = e.QueryRow(ctx, sql, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		return nil, err
	}

	return &created, nil
}

func (p *pgxNoteRepository) Get(ctx context.Context, id int64) (*Note, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(noteColumns...),
		sm.From("notes"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	note := &Note{}
	if err = scanNote(e.QueryRow(ctx, sql, args...), note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return note, nil
}

func (p *pgxNoteRepository) Patch(ctx context.Context, patch *NotePatch) (*Note, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)

	if patch.Title != nil {
		sets = append(sets, um.SetCol("title").ToArg(*patch.Title))
	}
	if patch.Content != nil {
		sets = append(sets, um.SetCol("content").ToArg(*patch.Content))
	}
	sets = append(sets, um.SetCol("updated_at").ToArg(time.Now().UTC()))

	q := psql.Update(
		um.Table("notes"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning("id", "title", "content", "created_at", "updated_at", "created_by"),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	note := &Note{}
	if err = scanNote(e.QueryRow(ctx, sql, args...), note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return note, nil
}

func (p *pgxNoteRepository) Delete(ctx context.Context, id int64) error {
	return p.deleteWhere(ctx, "notes", psql.Quote("id").EQ(psql.Arg(id)), true)
}

func (p *pgxNoteRepository) ListByCreator(ctx context.Context, userID int64) ([]*Note, error) {
	q := psql.Select(
		sm.Columns(noteColumns...),
		sm.From("notes"),
		sm.Where(psql.Quote("created_by").EQ(psql.Arg(userID))),
		sm.OrderBy("id"),
	)
	return p.queryNotes(ctx, q.Build)
}

func (p *pgxNoteRepository) ListShared(ctx context.Context, userID int64) ([]*Note, error) {
	q := psql.Select(
		sm.Columns(noteColumns...),
		sm.From("notes"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("note_id"),
				sm.From("user_notes"),
				sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
			),
		)),
		sm.OrderBy("id"),
	)
	return p.queryNotes(ctx, q.Build)
}

func (p *pgxNoteRepository) ListByTask(ctx context.Context, taskID int64) ([]*Note, error) {
	q := psql.Select(
		sm.Columns(noteColumns...),
		sm.From("notes"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("note_id"),
				sm.From("task_notes"),
				sm.Where(psql.Quote("task_id").EQ(psql.Arg(taskID))),
			),
		)),
		sm.OrderBy("id"),
	)
	return p.queryNotes(ctx, q.Build)
}

func (p *pgxNoteRepository) Share(ctx context.Context, noteID, userID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("user_notes", "note_id", "user_id"),
		im.Values(psql.Arg(noteID), psql.Arg(userID)),
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

func (p *pgxNoteRepository) IsSharedWith(ctx context.Context, noteID, userID int64) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("user_notes"),
		sm.Where(
			psql.Quote("note_id").EQ(psql.Arg(noteID)).
				And(psql.Quote("user_id").EQ(psql.Arg(userID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *pgxNoteRepository) DeleteShares(ctx context.Context, noteID int64) error {
	return p.deleteWhere(ctx, "user_notes", psql.Quote("note_id").EQ(psql.Arg(noteID)), false)
}

func (p *pgxNoteRepository) LinkTask(ctx context.Context, noteID, taskID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("task_notes", "note_id", "task_id"),
		im.Values(psql.Arg(noteID), psql.Arg(taskID)),
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

func (p *pgxNoteRepository) UnlinkTask(ctx context.Context, noteID, taskID int64) error {
	return p.deleteWhere(ctx, "task_notes",
		psql.Quote("note_id").EQ(psql.Arg(noteID)).
			And(psql.Quote("task_id").EQ(psql.Arg(taskID))),
		true)
}

func (p *pgxNoteRepository) GetTaskLinks(ctx context.Context, noteID int64) ([]int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("task_id"),
		sm.From("task_notes"),
		sm.Where(psql.Quote("note_id").EQ(psql.Arg(noteID))),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (int64, error) {
		var taskID int64
		if err = row.Scan(&taskID); err != nil {
			return 0, err
		}
		return taskID, nil
	})
}

func (p *pgxNoteRepository) DeleteTaskLinks(ctx context.Context, noteID int64) error {
	return p.deleteWhere(ctx, "task_notes", psql.Quote("note_id").EQ(psql.Arg(noteID)), false)
}

// DeleteTaskLinksByTeam clears link rows for every task of the team. The notes
// themselves survive a team delete.
func (p *pgxNoteRepository) DeleteTaskLinksByTeam(ctx context.Context, teamID int64) error {
	return p.deleteWhere(ctx, "task_notes",
		psql.Quote("task_id").In(
			psql.Select(
				sm.Columns("id"),
				sm.From("tasks"),
				sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
			),
		),
		false)
}

func (p *pgxNoteRepository) deleteWhere(ctx context.Context, table string, cond dialect.Expression, requireRows bool) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From(table),
		dm.Where(cond),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if requireRows && commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxNoteRepository) queryNotes(ctx context.Context, build func(ctx context.Context) (string, []any, error)) ([]*Note, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Note, error) {
		note := &Note{}
		if err = scanNote(row, note); err != nil {
			return nil, err
		}
		return note, nil
	})
}

func scanNote(row pgx.Row, note *Note) error {
	return row.Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&note.CreatedAt,
		&note.UpdatedAt,
		&note.CreatedBy,
	)
}
