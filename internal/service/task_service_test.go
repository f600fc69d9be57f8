package service

import (
	"context"
	"testing"
	"time"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTaskService_CreateTask(t *testing.T) {
	dueDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		task          *model.Task
		setupMocks    func(*MockUserRepository, *MockTeamRepository, *MockTaskRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success with default status",
			task: &model.Task{Title: "write release notes", TeamID: 5, DueDate: &dueDate},
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tmr.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "eng"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).
					Return(&repository.TeamMember{TeamID: 5, UserID: 1, Role: string(model.RoleMember)}, nil)
				tkr.On("Create", mock.Anything, mock.MatchedBy(func(task *repository.Task) bool {
					return task.Title == "write release notes" &&
						task.Status == string(model.TaskStatusPending) &&
						task.TeamID == 5
				})).Return(&repository.Task{
					ID:      10,
					Title:   "write release notes",
					Status:  string(model.TaskStatusPending),
					DueDate: &dueDate,
					TeamID:  5,
				}, nil)
			},
			expectedError: false,
		},
		{
			name: "team not found",
			task: &model.Task{Title: "orphan", TeamID: 99},
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tmr.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name: "caller not a team member",
			task: &model.Task{Title: "intrusion", TeamID: 5},
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tmr.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "eng"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name: "unknown status rejected",
			task: &model.Task{Title: "bad", TeamID: 5, Status: "done"},
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tmr.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "eng"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).
					Return(&repository.TeamMember{TeamID: 5, UserID: 1, Role: string(model.RoleMember)}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			mockTeamRepo := new(MockTeamRepository)
			mockTaskRepo := new(MockTaskRepository)

			tt.setupMocks(mockUserRepo, mockTeamRepo, mockTaskRepo)

			service := NewTaskService().
				WithUserRepo(mockUserRepo).
				WithTeamRepo(mockTeamRepo).
				WithTaskRepo(mockTaskRepo).
				WithGate(NewGate(mockTeamRepo, mockTaskRepo, nil))

			task, err := service.CreateTask(context.Background(), "alice", tt.task)

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				require.NotNil(t, task)
				assert.Equal(t, int64(10), task.ID)
				assert.Equal(t, model.TaskStatusPending, task.Status)
			}

			mockTaskRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_SetStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        model.TaskStatus
		setupMocks    func(*MockUserRepository, *MockTeamRepository, *MockTaskRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:   "member updates status",
			status: model.TaskStatusCompleted,
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).
					Return(&repository.Task{ID: 10, Title: "t", Status: string(model.TaskStatusPending), TeamID: 5}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).
					Return(&repository.TeamMember{TeamID: 5, UserID: 1, Role: string(model.RoleMember)}, nil)
				tkr.On("SetStatus", mock.Anything, int64(10), string(model.TaskStatusCompleted)).
					Return(&repository.Task{ID: 10, Title: "t", Status: string(model.TaskStatusCompleted), TeamID: 5}, nil)
			},
			expectedError: false,
		},
		{
			name:          "invalid status short-circuits",
			status:        "archived",
			setupMocks:    func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name:   "task not found",
			status: model.TaskStatusInProgress,
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:   "non-member forbidden",
			status: model.TaskStatusInProgress,
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).
					Return(&repository.Task{ID: 10, Title: "t", Status: string(model.TaskStatusPending), TeamID: 5}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			mockTeamRepo := new(MockTeamRepository)
			mockTaskRepo := new(MockTaskRepository)

			tt.setupMocks(mockUserRepo, mockTeamRepo, mockTaskRepo)

			service := NewTaskService().
				WithUserRepo(mockUserRepo).
				WithTeamRepo(mockTeamRepo).
				WithTaskRepo(mockTaskRepo).
				WithGate(NewGate(mockTeamRepo, mockTaskRepo, nil))

			task, err := service.SetStatus(context.Background(), "alice", 10, tt.status)

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				require.NotNil(t, task)
				assert.Equal(t, tt.status, task.Status)
			}
		})
	}
}

func TestTaskService_AssignTask(t *testing.T) {
	task := &repository.Task{ID: 10, Title: "t", Status: string(model.TaskStatusPending), TeamID: 5}
	membership := func(userID int64) *repository.TeamMember {
		return &repository.TeamMember{TeamID: 5, UserID: userID, Role: string(model.RoleMember)}
	}

	tests := []struct {
		name          string
		setupMocks    func(*MockUserRepository, *MockTeamRepository, *MockTaskRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success",
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).Return(task, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(membership(1), nil)
				ur.On("Get", mock.Anything, int64(2)).Return(&repository.User{ID: 2, Username: "bob"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(2)).Return(membership(2), nil)
				tkr.On("Assign", mock.Anything, int64(10), int64(2)).
					Return(&repository.TaskAssignment{TaskID: 10, UserID: 2}, nil)
			},
			expectedError: false,
		},
		{
			name: "assignee outside team",
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).Return(task, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(membership(1), nil)
				ur.On("Get", mock.Anything, int64(2)).Return(&repository.User{ID: 2, Username: "bob"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(2)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name: "assignee user does not exist",
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).Return(task, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(membership(1), nil)
				ur.On("Get", mock.Anything, int64(2)).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name: "duplicate assignment",
			setupMocks: func(ur *MockUserRepository, tmr *MockTeamRepository, tkr *MockTaskRepository) {
				ur.On("GetByUsername", mock.Anything, "alice").
					Return(&repository.User{ID: 1, Username: "alice"}, nil)
				tkr.On("Get", mock.Anything, int64(10)).Return(task, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(1)).Return(membership(1), nil)
				ur.On("Get", mock.Anything, int64(2)).Return(&repository.User{ID: 2, Username: "bob"}, nil)
				tmr.On("GetMembership", mock.Anything, int64(5), int64(2)).Return(membership(2), nil)
				tkr.On("Assign", mock.Anything, int64(10), int64(2)).Return(nil, repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			mockTeamRepo := new(MockTeamRepository)
			mockTaskRepo := new(MockTaskRepository)

			tt.setupMocks(mockUserRepo, mockTeamRepo, mockTaskRepo)

			service := NewTaskService().
				WithUserRepo(mockUserRepo).
				WithTeamRepo(mockTeamRepo).
				WithTaskRepo(mockTaskRepo).
				WithGate(NewGate(mockTeamRepo, mockTaskRepo, nil))

			assignment, err := service.AssignTask(context.Background(), "alice", 10, 2)

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				require.NotNil(t, assignment)
				assert.Equal(t, int64(10), assignment.TaskID)
				assert.Equal(t, int64(2), assignment.UserID)
			}
		})
	}
}
