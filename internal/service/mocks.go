package service

import (
	"context"

	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) (*repository.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) Get(ctx context.Context, id int64) (*repository.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *repository.Team) (*repository.Team, error) {
	args := m.Called(ctx, team)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Get(ctx context.Context, id int64) (*repository.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) List(ctx context.Context) ([]*repository.Team, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTeamRepository) AddMember(ctx context.Context, member *repository.TeamMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockTeamRepository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

func (m *MockTeamRepository) DeleteMembers(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

func (m *MockTeamRepository) GetMembers(ctx context.Context, teamID int64) ([]*repository.MemberInfo, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.MemberInfo), args.Error(1)
}

func (m *MockTeamRepository) GetMembership(ctx context.Context, teamID, userID int64) (*repository.TeamMember, error) {
	args := m.Called(ctx, teamID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamMember), args.Error(1)
}

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *repository.Task) (*repository.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) Get(ctx context.Context, id int64) (*repository.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context) ([]*repository.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByTeam(ctx context.Context, teamID int64) ([]*repository.Task, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) ListAssigned(ctx context.Context, userID int64) ([]*repository.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) SetStatus(ctx context.Context, id int64, status string) (*repository.Task, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Task), args.Error(1)
}

func (m *MockTaskRepository) Assign(ctx context.Context, taskID, userID int64) (*repository.TaskAssignment, error) {
	args := m.Called(ctx, taskID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TaskAssignment), args.Error(1)
}

func (m *MockTaskRepository) DeleteByTeam(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

func (m *MockTaskRepository) DeleteAssignmentsByTeam(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Create(ctx context.Context, note *repository.Note) (*repository.Note, error) {
	args := m.Called(ctx, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) Get(ctx context.Context, id int64) (*repository.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) Patch(ctx context.Context, patch *repository.NotePatch) (*repository.Note, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNoteRepository) ListByCreator(ctx context.Context, userID int64) ([]*repository.Note, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) ListShared(ctx context.Context, userID int64) ([]*repository.Note, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) ListByTask(ctx context.Context, taskID int64) ([]*repository.Note, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Note), args.Error(1)
}

func (m *MockNoteRepository) Share(ctx context.Context, noteID, userID int64) error {
	args := m.Called(ctx, noteID, userID)
	return args.Error(0)
}

func (m *MockNoteRepository) IsSharedWith(ctx context.Context, noteID, userID int64) (bool, error) {
	args := m.Called(ctx, noteID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockNoteRepository) DeleteShares(ctx context.Context, noteID int64) error {
	args := m.Called(ctx, noteID)
	return args.Error(0)
}

func (m *MockNoteRepository) LinkTask(ctx context.Context, noteID, taskID int64) error {
	args := m.Called(ctx, noteID, taskID)
	return args.Error(0)
}

func (m *MockNoteRepository) UnlinkTask(ctx context.Context, noteID, taskID int64) error {
	args := m.Called(ctx, noteID, taskID)
	return args.Error(0)
}

func (m *MockNoteRepository) GetTaskLinks(ctx context.Context, noteID int64) ([]int64, error) {
	args := m.Called(ctx, noteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockNoteRepository) DeleteTaskLinks(ctx context.Context, noteID int64) error {
	args := m.Called(ctx, noteID)
	return args.Error(0)
}

func (m *MockNoteRepository) DeleteTaskLinksByTeam(ctx context.Context, teamID int64) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}
