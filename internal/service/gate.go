package service

import (
	"context"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/pkg/errors"
)

// Gate decides whether an authenticated user may act on a resource. Every
// check re-reads the membership relations; decisions are never cached across
// requests.
type Gate struct {
	teams repository.TeamRepository
	tasks repository.TaskRepository
	notes repository.NoteRepository
}

func NewGate(teams repository.TeamRepository, tasks repository.TaskRepository, notes repository.NoteRepository) *Gate {
	return &Gate{
		teams: teams,
		tasks: tasks,
		notes: notes,
	}
}

// CanActOnTeam reports whether userID has a membership row for teamID.
func (g *Gate) CanActOnTeam(ctx context.Context, userID, teamID int64) (bool, error) {
	_, err := g.teams.GetMembership(ctx, teamID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RoleOnTeam returns the user's role on the team, or RoleUndefined when the
// user is not a member.
func (g *Gate) RoleOnTeam(ctx context.Context, userID, teamID int64) (model.Role, error) {
	member, err := g.teams.GetMembership(ctx, teamID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.RoleUndefined, nil
	}
	if err != nil {
		return model.RoleUndefined, err
	}
	return model.Role(member.Role), nil
}

// CanActOnTask resolves the task's team and delegates to CanActOnTeam.
// A missing task surfaces as repository.ErrNotFound.
func (g *Gate) CanActOnTask(ctx context.Context, userID, taskID int64) (bool, error) {
	task, err := g.tasks.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	return g.CanActOnTeam(ctx, userID, task.TeamID)
}

// CanWriteNote allows write actions on a note to its creator only; shares and
// task links never grant write rights.
func (g *Gate) CanWriteNote(ctx context.Context, userID, noteID int64) (bool, error) {
	note, err := g.notes.Get(ctx, noteID)
	if err != nil {
		return false, err
	}
	return note.CreatedBy == userID, nil
}

// CanReadNote allows reads to the creator, to users the note was explicitly
// shared with, and to members of any team owning a task the note is linked to.
func (g *Gate) CanReadNote(ctx context.Context, userID, noteID int64) (bool, error) {
	note, err := g.notes.Get(ctx, noteID)
	if err != nil {
		return false, err
	}

	if note.CreatedBy == userID {
		return true, nil
	}

	shared, err := g.notes.IsSharedWith(ctx, noteID, userID)
	if err != nil {
		return false, err
	}
	if shared {
		return true, nil
	}

	taskIDs, err := g.notes.GetTaskLinks(ctx, noteID)
	if err != nil {
		return false, err
	}

	for _, taskID := range taskIDs {
		ok, err := g.CanActOnTask(ctx, userID, taskID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}
