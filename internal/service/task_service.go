package service

import (
	"context"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TaskService struct {
	users repository.UserRepository
	teams repository.TeamRepository
	tasks repository.TaskRepository
	gate  *Gate
}

func NewTaskService() *TaskService {
	return &TaskService{}
}

func (t *TaskService) ListTasks(ctx context.Context) ([]*model.Task, *Error) {
	repoTasks, err := t.tasks.List(ctx)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list tasks")
	}
	return tasksToModel(repoTasks), nil
}

// ListMyTasks returns tasks assigned to the authenticated user.
func (t *TaskService) ListMyTasks(ctx context.Context, identity string) ([]*model.Task, *Error) {
	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	repoTasks, err := t.tasks.ListAssigned(ctx, user.ID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list assigned tasks")
	}
	return tasksToModel(repoTasks), nil
}

// CreateTask creates a task under a team the caller is a member of.
func (t *TaskService) CreateTask(ctx context.Context, identity string, task *model.Task) (*model.Task, *Error) {
	l := logger.FromContext(ctx)

	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	if _, err := t.teams.Get(ctx, task.TeamID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to create task")
	}

	ok, err := t.gate.CanActOnTeam(ctx, user.ID, task.TeamID)
	if err != nil {
		l.Error("failed to check membership", zap.Int64("team_id", task.TeamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create task")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of this team")
	}

	status := task.Status
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.Valid() {
		return nil, NewError(ErrorCodeInvalidBody, "unknown task status")
	}

	var description *string
	if task.Description != "" {
		description = &task.Description
	}

	repoTask, err := t.tasks.Create(ctx, &repository.Task{
		Title:       task.Title,
		Description: description,
		Status:      string(status),
		DueDate:     task.DueDate,
		TeamID:      task.TeamID,
	})
	if err != nil {
		l.Error("failed to create task", zap.String("title", task.Title), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create task")
	}

	return taskToModel(repoTask), nil
}

// SetStatus updates a task's status; the caller must be a member of the
// task's team and the status must be one of the closed set.
func (t *TaskService) SetStatus(ctx context.Context, identity string, taskID int64, status model.TaskStatus) (*model.Task, *Error) {
	if !status.Valid() {
		return nil, NewError(ErrorCodeInvalidBody, "unknown task status")
	}

	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	ok, err := t.gate.CanActOnTask(ctx, user.ID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update task")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of this team")
	}

	repoTask, err := t.tasks.SetStatus(ctx, taskID, string(status))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update task")
	}

	return taskToModel(repoTask), nil
}

// AssignTask assigns a task to a user. Both the caller and the assignee must
// be members of the task's team.
func (t *TaskService) AssignTask(ctx context.Context, identity string, taskID, assigneeID int64) (*model.TaskAssignment, *Error) {
	l := logger.FromContext(ctx)

	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	task, err := t.tasks.Get(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to assign task")
	}

	ok, err := t.gate.CanActOnTeam(ctx, user.ID, task.TeamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to assign task")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of this team")
	}

	if _, err = t.users.Get(ctx, assigneeID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Assignee user not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to assign task")
	}

	ok, err = t.gate.CanActOnTeam(ctx, assigneeID, task.TeamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to assign task")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "Assignee is not a member of the task's team")
	}

	assignment, err := t.tasks.Assign(ctx, taskID, assigneeID)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeAlreadyExists, "Task is already assigned to this user")
	}
	if err != nil {
		l.Error("failed to assign task",
			zap.Int64("task_id", taskID),
			zap.Int64("assignee_id", assigneeID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to assign task")
	}

	assignedAt := assignment.AssignedAt
	return &model.TaskAssignment{
		TaskID:     assignment.TaskID,
		UserID:     assignment.UserID,
		AssignedAt: &assignedAt,
	}, nil
}

func (t *TaskService) resolveUser(ctx context.Context, identity string) (*repository.User, *Error) {
	user, err := t.users.GetByUsername(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to look up user")
	}
	return user, nil
}

func (t *TaskService) WithUserRepo(r repository.UserRepository) *TaskService {
	t.users = r
	return t
}

func (t *TaskService) WithTeamRepo(r repository.TeamRepository) *TaskService {
	t.teams = r
	return t
}

func (t *TaskService) WithTaskRepo(r repository.TaskRepository) *TaskService {
	t.tasks = r
	return t
}

func (t *TaskService) WithGate(g *Gate) *TaskService {
	t.gate = g
	return t
}

func taskToModel(task *repository.Task) *model.Task {
	createdAt := task.CreatedAt
	m := &model.Task{
		ID:        task.ID,
		Title:     task.Title,
		Status:    model.TaskStatus(task.Status),
		CreatedAt: &createdAt,
		DueDate:   task.DueDate,
		TeamID:    task.TeamID,
	}
	if task.Description != nil {
		m.Description = *task.Description
	}
	return m
}

func tasksToModel(tasks []*repository.Task) []*model.Task {
	res := make([]*model.Task, 0, len(tasks))
	for _, task := range tasks {
		res = append(res, taskToModel(task))
	}
	return res
}
