package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type membershipKey struct {
	teamID int64
	userID int64
}

// newMembershipRepo mocks the membership relation from a plain set so gate
// output can be compared against reference set-membership.
func newMembershipRepo(memberships map[membershipKey]string) *MockTeamRepository {
	tr := new(MockTeamRepository)
	for key, role := range memberships {
		tr.On("GetMembership", mock.Anything, key.teamID, key.userID).
			Return(&repository.TeamMember{TeamID: key.teamID, UserID: key.userID, Role: role}, nil)
	}
	tr.On("GetMembership", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrNotFound)
	return tr
}

// Gate output must agree with reference set-membership for randomly
// constructed membership sets.
func TestGate_CanActOnTeam_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	const teams = 5
	const users = 8

	for round := 0; round < 20; round++ {
		memberships := make(map[membershipKey]string)
		for teamID := int64(1); teamID <= teams; teamID++ {
			for userID := int64(1); userID <= users; userID++ {
				if rng.Intn(2) == 0 {
					memberships[membershipKey{teamID: teamID, userID: userID}] = string(model.RoleMember)
				}
			}
		}

		gate := NewGate(newMembershipRepo(memberships), nil, nil)

		for teamID := int64(1); teamID <= teams; teamID++ {
			for userID := int64(1); userID <= users; userID++ {
				got, err := gate.CanActOnTeam(context.Background(), userID, teamID)
				require.NoError(t, err)

				_, want := memberships[membershipKey{teamID: teamID, userID: userID}]
				assert.Equal(t, want, got,
					"round %d: gate disagrees with membership set for user %d team %d", round, userID, teamID)
			}
		}
	}
}

func TestGate_RoleOnTeam(t *testing.T) {
	memberships := map[membershipKey]string{
		{teamID: 1, userID: 1}: string(model.RoleOwner),
		{teamID: 1, userID: 2}: string(model.RoleMember),
	}
	gate := NewGate(newMembershipRepo(memberships), nil, nil)

	role, err := gate.RoleOnTeam(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, role)

	role, err = gate.RoleOnTeam(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, role)

	role, err = gate.RoleOnTeam(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUndefined, role)
}

func TestGate_CanActOnTask(t *testing.T) {
	memberships := map[membershipKey]string{
		{teamID: 7, userID: 1}: string(model.RoleMember),
	}
	teamRepo := newMembershipRepo(memberships)

	taskRepo := new(MockTaskRepository)
	taskRepo.On("Get", mock.Anything, int64(100)).Return(&repository.Task{ID: 100, TeamID: 7}, nil)
	taskRepo.On("Get", mock.Anything, int64(200)).Return(nil, repository.ErrNotFound)

	gate := NewGate(teamRepo, taskRepo, nil)

	ok, err := gate.CanActOnTask(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanActOnTask(context.Background(), 2, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = gate.CanActOnTask(context.Background(), 1, 200)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// Only the creator may write, regardless of shares or team membership via
// linked tasks.
func TestGate_CanWriteNote(t *testing.T) {
	noteRepo := new(MockNoteRepository)
	noteRepo.On("Get", mock.Anything, int64(10)).Return(&repository.Note{ID: 10, CreatedBy: 1}, nil)

	gate := NewGate(nil, nil, noteRepo)

	for userID := int64(1); userID <= 5; userID++ {
		ok, err := gate.CanWriteNote(context.Background(), userID, 10)
		require.NoError(t, err)
		assert.Equal(t, userID == 1, ok)
	}
}

func TestGate_CanReadNote(t *testing.T) {
	tests := []struct {
		name       string
		userID     int64
		setupMocks func(*MockTeamRepository, *MockTaskRepository, *MockNoteRepository)
		expected   bool
	}{
		{
			name:   "creator reads",
			userID: 1,
			setupMocks: func(tr *MockTeamRepository, tkr *MockTaskRepository, nr *MockNoteRepository) {
				nr.On("Get", mock.Anything, int64(10)).Return(&repository.Note{ID: 10, CreatedBy: 1}, nil)
			},
			expected: true,
		},
		{
			name:   "explicit share grants read",
			userID: 2,
			setupMocks: func(tr *MockTeamRepository, tkr *MockTaskRepository, nr *MockNoteRepository) {
				nr.On("Get", mock.Anything, int64(10)).Return(&repository.Note{ID: 10, CreatedBy: 1}, nil)
				nr.On("IsSharedWith", mock.Anything, int64(10), int64(2)).Return(true, nil)
			},
			expected: true,
		},
		{
			name:   "member of linked task's team reads",
			userID: 3,
			setupMocks: func(tr *MockTeamRepository, tkr *MockTaskRepository, nr *MockNoteRepository) {
				nr.On("Get", mock.Anything, int64(10)).Return(&repository.Note{ID: 10, CreatedBy: 1}, nil)
				nr.On("IsSharedWith", mock.Anything, int64(10), int64(3)).Return(false, nil)
				nr.On("GetTaskLinks", mock.Anything, int64(10)).Return([]int64{100}, nil)
				tkr.On("Get", mock.Anything, int64(100)).Return(&repository.Task{ID: 100, TeamID: 7}, nil)
				tr.On("GetMembership", mock.Anything, int64(7), int64(3)).
					Return(&repository.TeamMember{TeamID: 7, UserID: 3}, nil)
			},
			expected: true,
		},
		{
			name:   "stranger denied",
			userID: 4,
			setupMocks: func(tr *MockTeamRepository, tkr *MockTaskRepository, nr *MockNoteRepository) {
				nr.On("Get", mock.Anything, int64(10)).Return(&repository.Note{ID: 10, CreatedBy: 1}, nil)
				nr.On("IsSharedWith", mock.Anything, int64(10), int64(4)).Return(false, nil)
				nr.On("GetTaskLinks", mock.Anything, int64(10)).Return([]int64{100}, nil)
				tkr.On("Get", mock.Anything, int64(100)).Return(&repository.Task{ID: 100, TeamID: 7}, nil)
				tr.On("GetMembership", mock.Anything, int64(7), int64(4)).Return(nil, repository.ErrNotFound)
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			teamRepo := new(MockTeamRepository)
			taskRepo := new(MockTaskRepository)
			noteRepo := new(MockNoteRepository)
			tt.setupMocks(teamRepo, taskRepo, noteRepo)

			gate := NewGate(teamRepo, taskRepo, noteRepo)

			ok, err := gate.CanReadNote(context.Background(), tt.userID, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}
