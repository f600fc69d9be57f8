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

type NoteService struct {
	tx db.Transactor

	users repository.UserRepository
	teams repository.TeamRepository
	tasks repository.TaskRepository
	notes repository.NoteRepository
	gate  *Gate
}

func NewNoteService(tx db.Transactor) *NoteService {
	return &NoteService{tx: tx}
}

// ListNotes returns the user's created notes plus notes shared with them,
// deduplicated by id.
func (n *NoteService) ListNotes(ctx context.Context, identity string) ([]*model.Note, *Error) {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	created, err := n.notes.ListByCreator(ctx, user.ID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list notes")
	}

	shared, err := n.notes.ListShared(ctx, user.ID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list notes")
	}

	seen := make(map[int64]struct{}, len(created)+len(shared))
	notes := make([]*model.Note, 0, len(created)+len(shared))
	for _, repoNote := range append(created, shared...) {
		if _, ok := seen[repoNote.ID]; ok {
			continue
		}
		seen[repoNote.ID] = struct{}{}
		notes = append(notes, noteToModel(repoNote))
	}

	return notes, nil
}

func (n *NoteService) GetNote(ctx context.Context, identity string, noteID int64) (*model.Note, *Error) {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	ok, err := n.gate.CanReadNote(ctx, user.ID, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get note")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "Access denied to this note")
	}

	repoNote, err := n.notes.Get(ctx, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get note")
	}

	return noteToModel(repoNote), nil
}

func (n *NoteService) CreateNote(ctx context.Context, identity string, note *model.Note) (*model.Note, *Error) {
	l := logger.FromContext(ctx)

	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	var title *string
	if note.Title != "" {
		title = &note.Title
	}

	repoNote, err := n.notes.Create(ctx, &repository.Note{
		Title:     title,
		Content:   note.Content,
		CreatedBy: user.ID,
	})
	if err != nil {
		l.Error("failed to create note", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create note")
	}

	return noteToModel(repoNote), nil
}

// UpdateNote is creator-only: shares and task links never grant write rights.
func (n *NoteService) UpdateNote(ctx context.Context, identity string, noteID int64, patch *model.Note) (*model.Note, *Error) {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	ok, err := n.gate.CanWriteNote(ctx, user.ID, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update note")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "Only the creator can update this note")
	}

	repoPatch := &repository.NotePatch{ID: noteID}
	if patch.Title != "" {
		repoPatch.Title = &patch.Title
	}
	if patch.Content != "" {
		repoPatch.Content = &patch.Content
	}

	repoNote, err := n.notes.Patch(ctx, repoPatch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update note")
	}

	return noteToModel(repoNote), nil
}

// DeleteNote removes the note together with its share and task-link rows in
// one transaction. Creator-only.
func (n *NoteService) DeleteNote(ctx context.Context, identity string, noteID int64) *Error {
	l := logger.FromContext(ctx)

	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return serr
	}

	ok, err := n.gate.CanWriteNote(ctx, user.ID, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to delete note")
	}
	if !ok {
		return NewError(ErrorCodeForbidden, "Only the creator can delete this note")
	}

	txErr := n.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := n.notes.DeleteShares(txCtx, noteID); err != nil {
			return err
		}
		if err := n.notes.DeleteTaskLinks(txCtx, noteID); err != nil {
			return err
		}
		return n.notes.Delete(txCtx, noteID)
	})
	if txErr != nil {
		if errors.Is(txErr, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "Note not found")
		}
		l.Error("failed to delete note", zap.Int64("note_id", noteID), zap.Error(txErr))
		return NewError(ErrorCodeUnspecified, "failed to delete note")
	}

	return nil
}

// ShareNote shares a note with another user. Creator-only.
func (n *NoteService) ShareNote(ctx context.Context, identity string, noteID, assigneeID int64) *Error {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return serr
	}

	ok, err := n.gate.CanWriteNote(ctx, user.ID, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Note not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to share note")
	}
	if !ok {
		return NewError(ErrorCodeForbidden, "Only the creator can share this note")
	}

	if _, err = n.users.Get(ctx, assigneeID); errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Assignee user not found")
	} else if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to share note")
	}

	err = n.notes.Share(ctx, noteID, assigneeID)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return NewError(ErrorCodeAlreadyExists, "Note already shared with this user")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to share note")
	}

	return nil
}

// LinkTask links a note to a task; the caller must be a member of the task's
// team.
func (n *NoteService) LinkTask(ctx context.Context, identity string, noteID, taskID int64) *Error {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return serr
	}

	if _, err := n.notes.Get(ctx, noteID); errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Note not found")
	} else if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to link note")
	}

	ok, err := n.gate.CanActOnTask(ctx, user.ID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to link note")
	}
	if !ok {
		return NewError(ErrorCodeForbidden, "User is not a member of the team for this task")
	}

	err = n.notes.LinkTask(ctx, noteID, taskID)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return NewError(ErrorCodeAlreadyExists, "Note already linked to this task")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to link note")
	}

	return nil
}

func (n *NoteService) UnlinkTask(ctx context.Context, identity string, noteID, taskID int64) *Error {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return serr
	}

	ok, err := n.gate.CanActOnTask(ctx, user.ID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to unlink note")
	}
	if !ok {
		return NewError(ErrorCodeForbidden, "User is not a member of the team for this task")
	}

	if err = n.notes.UnlinkTask(ctx, noteID, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "Note is not linked to this task")
		}
		return NewError(ErrorCodeUnspecified, "failed to unlink note")
	}

	return nil
}

// GetTaskNotes lists notes linked to a task, for members of the task's team.
func (n *NoteService) GetTaskNotes(ctx context.Context, identity string, taskID int64) ([]*model.Note, *Error) {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	ok, err := n.gate.CanActOnTask(ctx, user.ID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Task not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get task notes")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of the team for this task")
	}

	repoNotes, err := n.notes.ListByTask(ctx, taskID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get task notes")
	}

	notes := make([]*model.Note, 0, len(repoNotes))
	for _, repoNote := range repoNotes {
		notes = append(notes, noteToModel(repoNote))
	}
	return notes, nil
}

// GetTeamNotes lists notes linked to any task of the team, for team members.
func (n *NoteService) GetTeamNotes(ctx context.Context, identity string, teamID int64) ([]*model.TaskNote, *Error) {
	user, serr := n.resolveUser(ctx, identity)
	if serr != nil {
		return nil, serr
	}

	if _, err := n.teams.Get(ctx, teamID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "Team not found")
	} else if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team notes")
	}

	ok, err := n.gate.CanActOnTeam(ctx, user.ID, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team notes")
	}
	if !ok {
		return nil, NewError(ErrorCodeForbidden, "User is not a member of this team")
	}

	repoTasks, err := n.tasks.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team notes")
	}

	taskNotes := make([]*model.TaskNote, 0)
	for _, repoTask := range repoTasks {
		repoNotes, err := n.notes.ListByTask(ctx, repoTask.ID)
		if err != nil {
			return nil, NewError(ErrorCodeUnspecified, "failed to get team notes")
		}
		for _, repoNote := range repoNotes {
			taskNotes = append(taskNotes, &model.TaskNote{
				TaskID:    repoTask.ID,
				TaskTitle: repoTask.Title,
				Note:      noteToModel(repoNote),
			})
		}
	}

	return taskNotes, nil
}

func (n *NoteService) resolveUser(ctx context.Context, identity string) (*repository.User, *Error) {
	user, err := n.users.GetByUsername(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to look up user")
	}
	return user, nil
}

func (n *NoteService) WithUserRepo(r repository.UserRepository) *NoteService {
	n.users = r
	return n
}

func (n *NoteService) WithTeamRepo(r repository.TeamRepository) *NoteService {
	n.teams = r
	return n
}

func (n *NoteService) WithTaskRepo(r repository.TaskRepository) *NoteService {
	n.tasks = r
	return n
}

func (n *NoteService) WithNoteRepo(r repository.NoteRepository) *NoteService {
	n.notes = r
	return n
}

func (n *NoteService) WithGate(g *Gate) *NoteService {
	n.gate = g
	return n
}

func noteToModel(note *repository.Note) *model.Note {
	createdAt := note.CreatedAt
	m := &model.Note{
		ID:        note.ID,
		Content:   note.Content,
		CreatedAt: &createdAt,
		UpdatedAt: note.UpdatedAt,
		AuthorID:  note.CreatedBy,
	}
	if note.Title != nil {
		m.Title = *note.Title
	}
	return m
}
