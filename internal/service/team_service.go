package service

import (
	"context"

	"github.com/ddanshin/task-manager/internal/db"
	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TeamService struct {
	tx db.Transactor

	users repository.UserRepository
	teams repository.TeamRepository
	tasks repository.TaskRepository
	notes repository.NoteRepository
	gate  *Gate
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx: tx,
	}
}

// CreateTeam creates the team and records the creator as its sole owner
// member, in one transaction.
func (t *TeamService) CreateTeam(ctx context.Context, identity string, team *model.Team) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	creator, err := t.users.GetByUsername(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		l.Error("failed to look up creator", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create team")
	}

	created := &model.Team{}

	txErr := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var description *string
		if team.Description != "" {
			description = &team.Description
		}

		repoTeam, err := t.teams.Create(txCtx, &repository.Team{
			Name:        team.Name,
			Description: description,
		})
		if errors.Is(err, repository.ErrAlreadyExists) {
			l.Warn("team already exists", zap.String("team_name", team.Name))
			return NewError(ErrorCodeTeamExists, "Team name already exists")
		}
		if err != nil {
			l.Error("failed to create team", zap.String("team_name", team.Name), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		if err = t.teams.AddMember(txCtx, &repository.TeamMember{
			TeamID: repoTeam.ID,
			UserID: creator.ID,
			Role:   string(model.RoleOwner),
		}); err != nil {
			l.Error("failed to add creator membership",
				zap.String("team_name", team.Name),
				zap.Int64("user_id", creator.ID),
				zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		createdAt := repoTeam.CreatedAt
		created.ID = repoTeam.ID
		created.Name = repoTeam.Name
		created.Description = team.Description
		created.CreatedAt = &createdAt
		created.Members = []*model.TeamMember{
			{UserID: creator.ID, Username: creator.Username, Role: model.RoleOwner},
		}

		return nil
	})

	if txErr != nil {
		var res *Error
		if errors.As(txErr, &res) {
			return nil, res
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to create team")
	}

	return created, nil
}

func (t *TeamService) GetTeam(ctx context.Context, teamID int64) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	repoTeam, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	members, err := t.teams.GetMembers(ctx, teamID)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team members")
	}

	return teamToModel(repoTeam, members), nil
}

func (t *TeamService) ListTeams(ctx context.Context) ([]*model.Team, *Error) {
	repoTeams, err := t.teams.List(ctx)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	teams := make([]*model.Team, 0, len(repoTeams))
	for _, repoTeam := range repoTeams {
		members, err := t.teams.GetMembers(ctx, repoTeam.ID)
		if err != nil {
			return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
		}
		teams = append(teams, teamToModel(repoTeam, members))
	}

	return teams, nil
}

// UpdateTeam renames or re-describes a team; any member may do it.
func (t *TeamService) UpdateTeam(ctx context.Context, identity string, teamID int64, patch *model.Team) (*model.Team, *Error) {
	if patch.Name == "" && patch.Description == "" {
		return nil, NewError(ErrorCodeInvalidBody, "No data provided")
	}

	if _, serr := t.requireMember(ctx, identity, teamID); serr != nil {
		return nil, serr
	}

	repoPatch := &repository.TeamPatch{ID: teamID}
	if patch.Name != "" {
		repoPatch.Name = &patch.Name
	}
	if patch.Description != "" {
		repoPatch.Description = &patch.Description
	}

	repoTeam, err := t.teams.Patch(ctx, repoPatch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeTeamExists, "Team name already exists")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}

	members, err := t.teams.GetMembers(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}

	return teamToModel(repoTeam, members), nil
}

// DeleteTeam is owner-only. The team's tasks, their assignment and note-link
// rows, and the membership rows go with the team in one transaction; nothing
// references the team afterwards.
func (t *TeamService) DeleteTeam(ctx context.Context, identity string, teamID int64) *Error {
	l := logger.FromContext(ctx)

	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return serr
	}

	if _, err := t.teams.Get(ctx, teamID); errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Team not found")
	} else if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}

	role, err := t.gate.RoleOnTeam(ctx, user.ID, teamID)
	if err != nil {
		l.Error("failed to check role", zap.Int64("team_id", teamID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}
	if role != model.RoleOwner {
		return NewError(ErrorCodeForbidden, "Only the team owner can delete the team")
	}

	txErr := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := t.notes.DeleteTaskLinksByTeam(txCtx, teamID); err != nil {
			return err
		}
		if err := t.tasks.DeleteAssignmentsByTeam(txCtx, teamID); err != nil {
			return err
		}
		if err := t.tasks.DeleteByTeam(txCtx, teamID); err != nil {
			return err
		}
		if err := t.teams.DeleteMembers(txCtx, teamID); err != nil {
			return err
		}
		return t.teams.Delete(txCtx, teamID)
	})
	if txErr != nil {
		if errors.Is(txErr, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "Team not found")
		}
		l.Error("failed to delete team", zap.Int64("team_id", teamID), zap.Error(txErr))
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}

	return nil
}

// AddMember lets any existing member add another registered user.
func (t *TeamService) AddMember(ctx context.Context, identity string, teamID, memberID int64) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if _, serr := t.requireMember(ctx, identity, teamID); serr != nil {
		return nil, serr
	}

	if _, err := t.users.Get(ctx, memberID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Member not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to add member")
	}

	err := t.teams.AddMember(ctx, &repository.TeamMember{
		TeamID: teamID,
		UserID: memberID,
		Role:   string(model.RoleMember),
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeAlreadyExists, "User is already a member of this team")
	}
	if err != nil {
		l.Error("failed to add member",
			zap.Int64("team_id", teamID),
			zap.Int64("member_id", memberID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to add member")
	}

	return t.GetTeam(ctx, teamID)
}

// RemoveMember is owner-only.
func (t *TeamService) RemoveMember(ctx context.Context, identity string, teamID, memberID int64) (*model.Team, *Error) {
	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	if _, err := t.teams.Get(ctx, teamID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	role, err := t.gate.RoleOnTeam(ctx, user.ID, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to remove member")
	}
	if role != model.RoleOwner {
		return nil, NewError(ErrorCodeForbidden, "Only the team owner can remove members")
	}

	if err = t.teams.RemoveMember(ctx, teamID, memberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrorCodeNotFound, "Membership not found")
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	return t.GetTeam(ctx, teamID)
}

// GetTeamTasks lists a team's tasks for its members.
func (t *TeamService) GetTeamTasks(ctx context.Context, identity string, teamID int64) ([]*model.Task, *Error) {
	if _, serr := t.requireMember(ctx, identity, teamID); serr != nil {
		return nil, serr
	}

	repoTasks, err := t.tasks.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team tasks")
	}

	tasks := make([]*model.Task, 0, len(repoTasks))
	for _, repoTask := range repoTasks {
		tasks = append(tasks, taskToModel(repoTask))
	}

	return tasks, nil
}

func (t *TeamService) resolveUser(ctx context.Context, identity string) (*repository.User, *Error) {
	user, err := t.users.GetByUsername(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to look up user")
	}
	return user, nil
}

// requireMember resolves identity and rejects non-members of the team.
func (t *TeamService) requireMember(ctx context.Context, identity string, teamID int64) (*repository.User, *Error) {
	user, serr := t.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	if _, err := t.teams.Get(ctx, teamID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to check membership")
	}

	ok, err := t.gate.CanActOnTeam(ctx, user.ID, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of this team")
	}

	return user, nil
}

func (t *TeamService) WithUserRepo(r repository.UserRepository) *TeamService {
	t.users = r
	return t
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithTaskRepo(r repository.TaskRepository) *TeamService {
	t.tasks = r
	return t
}

func (t *TeamService) WithNoteRepo(r repository.NoteRepository) *TeamService {
	t.notes = r
	return t
}

func (t *TeamService) WithGate(g *Gate) *TeamService {
	t.gate = g
	return t
}

func teamToModel(team *repository.Team, members []*repository.MemberInfo) *model.Team {
	createdAt := team.CreatedAt
	m := &model.Team{
		ID:        team.ID,
		Name:      team.Name,
		CreatedAt: &createdAt,
		Members:   make([]*model.TeamMember, 0, len(members)),
	}
	if team.Description != nil {
		m.Description = *team.Description
	}
	for _, member := range members {
		m.Members = append(m.Members, &model.TeamMember{
			UserID:   member.UserID,
			Username: member.Username,
			Role:     model.Role(member.Role),
		})
	}
	return m
}
