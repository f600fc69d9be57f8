package service

import (
	"context"
	"testing"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Walks the membership lifecycle: a non-member is rejected, gains membership,
// and from then on may act on the team's resources.
func TestMembershipLifecycle(t *testing.T) {
	mockTx := new(MockTransactor)
	mockUserRepo := new(MockUserRepository)
	mockTeamRepo := new(MockTeamRepository)
	mockTaskRepo := new(MockTaskRepository)

	alice := &repository.User{ID: 1, Username: "alice"}
	bob := &repository.User{ID: 2, Username: "bob"}
	eng := &repository.Team{ID: 5, Name: "eng"}

	mockUserRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)
	mockUserRepo.On("GetByUsername", mock.Anything, "bob").Return(bob, nil)
	mockUserRepo.On("Get", mock.Anything, int64(2)).Return(bob, nil)
	mockTeamRepo.On("Get", mock.Anything, int64(5)).Return(eng, nil)
	mockTeamRepo.On("GetMembership", mock.Anything, int64(5), int64(1)).
		Return(&repository.TeamMember{TeamID: 5, UserID: 1, Role: string(model.RoleOwner)}, nil)

	gate := NewGate(mockTeamRepo, mockTaskRepo, nil)
	teamService := NewTeamService(mockTx).
		WithUserRepo(mockUserRepo).
		WithTeamRepo(mockTeamRepo).
		WithGate(gate)
	taskService := NewTaskService().
		WithUserRepo(mockUserRepo).
		WithTeamRepo(mockTeamRepo).
		WithTaskRepo(mockTaskRepo).
		WithGate(gate)

	ctx := context.Background()

	// Bob is not a member yet: both adding members and creating tasks are
	// rejected with FORBIDDEN.
	mockTeamRepo.On("GetMembership", mock.Anything, int64(5), int64(2)).
		Return(nil, repository.ErrNotFound).Twice()

	_, serr := teamService.AddMember(ctx, "bob", 5, 2)
	require.NotNil(t, serr)
	assert.Equal(t, ErrorCodeForbidden, serr.Code)

	_, serr = taskService.CreateTask(ctx, "bob", &model.Task{Title: "sneak in", TeamID: 5})
	require.NotNil(t, serr)
	assert.Equal(t, ErrorCodeForbidden, serr.Code)

	// Alice, the owner, adds bob.
	mockTeamRepo.On("AddMember", mock.Anything, &repository.TeamMember{
		TeamID: 5,
		UserID: 2,
		Role:   string(model.RoleMember),
	}).Return(nil).Once()
	mockTeamRepo.On("GetMembers", mock.Anything, int64(5)).Return([]*repository.MemberInfo{
		{UserID: 1, Username: "alice", Role: string(model.RoleOwner)},
		{UserID: 2, Username: "bob", Role: string(model.RoleMember)},
	}, nil).Once()

	team, serr := teamService.AddMember(ctx, "alice", 5, 2)
	require.Nil(t, serr)
	require.Len(t, team.Members, 2)

	// From now on bob's membership resolves, and his task creation succeeds.
	mockTeamRepo.On("GetMembership", mock.Anything, int64(5), int64(2)).
		Return(&repository.TeamMember{TeamID: 5, UserID: 2, Role: string(model.RoleMember)}, nil)
	mockTaskRepo.On("Create", mock.Anything, mock.MatchedBy(func(task *repository.Task) bool {
		return task.Title == "ship it" && task.TeamID == 5
	})).Return(&repository.Task{
		ID:     10,
		Title:  "ship it",
		Status: string(model.TaskStatusPending),
		TeamID: 5,
	}, nil).Once()

	task, serr := taskService.CreateTask(ctx, "bob", &model.Task{Title: "ship it", TeamID: 5})
	require.Nil(t, serr)
	assert.Equal(t, int64(10), task.ID)
	assert.Equal(t, model.TaskStatusPending, task.Status)

	mockTeamRepo.AssertExpectations(t)
	mockTaskRepo.AssertExpectations(t)
}
