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
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
)

type Task struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description *string    `db:"description"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	DueDate     *time.Time `db:"due_date"`
	TeamID      int64      `db:"team_id"`
}

type TaskAssignment struct {
	TaskID     int64     `db:"task_id"`
	UserID     int64     `db:"user_id"`
	AssignedAt time.Time `db:"assigned_at"`
}

type TaskRepository interface {
	Create(ctx context.Context, task *Task) (*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
	ListByTeam(ctx context.Context, teamID int64) ([]*Task, error)
	ListAssigned(ctx context.Context, userID int64) ([]*Task, error)
	SetStatus(ctx context.Context, id int64, status string) (*Task, error)
	Assign(ctx context.Context, taskID, userID int64) (*TaskAssignment, error)
	DeleteByTeam(ctx context.Context, teamID int64) error
	DeleteAssignmentsByTeam(ctx context.Context, teamID int64) error
}

type pgxTaskRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &pgxTaskRepository{pool: pool}
}

var taskColumns = []any{"id", "title", "description", "status", "created_at", "due_date", "team_id"}

func (p *pgxTaskRepository) Create(ctx context.Context, task *Task) (*Task, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("tasks", "title", "description", "status", "due_date", "team_id"),
		im.Values(
			psql.Arg(task.Title),
			psql.Arg(task.Description),
			psql.Arg(task.Status),
			psql.Arg(task.DueDate),
			psql.Arg(task.TeamID),
		),
		im.Returning("id", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	created := *task
	if err = e.QueryRow(ctx, sql, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		return nil, err
	}

	return &created, nil
}

func (p *pgxTaskRepository) Get(ctx context.Context, id int64) (*Task, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(taskColumns...),
		sm.From("tasks"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	task := &Task{}
	if err = scanTask(e.QueryRow(ctx, sql, args...), task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (p *pgxTaskRepository) List(ctx context.Context) ([]*Task, error) {
	q := psql.Select(
		sm.Columns(taskColumns...),
		sm.From("tasks"),
		sm.OrderBy("id"),
	)
	return p.queryTasks(ctx, q.Build)
}

func (p *pgxTaskRepository) ListByTeam(ctx context.Context, teamID int64) ([]*Task, error) {
	q := psql.Select(
		sm.Columns(taskColumns...),
		sm.From("tasks"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("id"),
	)
	return p.queryTasks(ctx, q.Build)
}

func (p *pgxTaskRepository) ListAssigned(ctx context.Context, userID int64) ([]*Task, error) {
	q := psql.Select(
		sm.Columns(taskColumns...),
		sm.From("tasks"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("task_id"),
				sm.From("task_assignments"),
				sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
			),
		)),
		sm.OrderBy("id"),
	)
	return p.queryTasks(ctx, q.Build)
}

func (p *pgxTaskRepository) SetStatus(ctx context.Context, id int64, status string) (*Task, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("tasks"),
		um.SetCol("status").ToArg(status),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.Returning("id", "title", "description", "status", "created_at", "due_date", "team_id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	task := &Task{}
	if err = scanTask(e.QueryRow(ctx, sql, args...), task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (p *pgxTaskRepository) Assign(ctx context.Context, taskID, userID int64) (*TaskAssignment, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("task_assignments", "task_id", "user_id"),
		im.Values(psql.Arg(taskID), psql.Arg(userID)),
		im.Returning("task_id", "user_id", "assigned_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	assignment := &TaskAssignment{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&assignment.TaskID, &assignment.UserID, &assignment.AssignedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	return assignment, nil
}

// DeleteByTeam removes every task of the team. Assignment and note-link rows
// referencing those tasks must be cleared first.
func (p *pgxTaskRepository) DeleteByTeam(ctx context.Context, teamID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("tasks"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTaskRepository) DeleteAssignmentsByTeam(ctx context.Context, teamID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("task_assignments"),
		dm.Where(psql.Quote("task_id").In(
			psql.Select(
				sm.Columns("id"),
				sm.From("tasks"),
				sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
			),
		)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTaskRepository) queryTasks(ctx context.Context, build func(ctx context.Context) (string, []any, error)) ([]*Task, error) {
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Task, error) {
		task := &Task{}
		if err = scanTask(row, task); err != nil {
			return nil, err
		}
		return task, nil
	})
}

func scanTask(row pgx.Row, task *Task) error {
	return row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.CreatedAt,
		&task.DueDate,
		&task.TeamID,
	)
}
