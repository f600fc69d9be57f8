package api

import (
	"net/http"
	"strconv"

	"github.com/ddanshin/task-manager/internal/auth"
	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/service"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Handler struct {
	auth *service.AuthService
	user *service.UserService
	team *service.TeamService
	task *service.TaskService
	note *service.NoteService

	verifier      *auth.TokenVerifier
	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithAuthService(a *service.AuthService) *Handler {
	h.auth = a
	return h
}

func (h *Handler) WithUserService(user *service.UserService) *Handler {
	h.user = user
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithTaskService(task *service.TaskService) *Handler {
	h.task = task
	return h
}

func (h *Handler) WithNoteService(note *service.NoteService) *Handler {
	h.note = note
	return h
}

func (h *Handler) WithTokenVerifier(v *auth.TokenVerifier) *Handler {
	h.verifier = v
	return h
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())
	e.POST("/register", h.Register)
	e.POST("/login", h.Login)

	secured := e.Group("", AuthMiddleware(h.verifier))

	secured.GET("/users/me", h.GetMe)
	secured.GET("/users/:id", h.GetUser)

	secured.GET("/teams", h.ListTeams)
	secured.POST("/teams", h.CreateTeam)
	secured.GET("/teams/:id", h.GetTeam)
	secured.PUT("/teams/:id", h.UpdateTeam)
	secured.DELETE("/teams/:id", h.DeleteTeam)
	secured.POST("/teams/:id/members", h.AddTeamMember)
	secured.DELETE("/teams/:id/members/:memberID", h.RemoveTeamMember)
	secured.GET("/teams/:id/tasks", h.GetTeamTasks)
	secured.GET("/teams/:id/notes", h.GetTeamNotes)

	secured.GET("/tasks", h.ListTasks)
	secured.GET("/tasks/my", h.ListMyTasks)
	secured.POST("/tasks", h.CreateTask)
	secured.PUT("/tasks/:id/status", h.SetTaskStatus)
	secured.POST("/tasks/:id/assign/:userID", h.AssignTask)

	secured.GET("/notes", h.ListNotes)
	secured.POST("/notes", h.CreateNote)
	secured.GET("/notes/:id", h.GetNote)
	secured.PUT("/notes/:id", h.UpdateNote)
	secured.DELETE("/notes/:id", h.DeleteNote)
	secured.POST("/notes/:id/assign/:userID", h.ShareNote)
	secured.POST("/notes/:id/link/task/:taskID", h.LinkNoteTask)
	secured.DELETE("/notes/:id/unlink/task/:taskID", h.UnlinkNoteTask)
	secured.GET("/notes/task/:taskID", h.GetTaskNotes)
	secured.GET("/notes/team/:teamID", h.GetTeamNotesAlias)
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("registering user", zap.String("username", req.Username))

	if err := h.auth.Register(e.Request().Context(), req.Username, req.Password); err != nil {
		l.Error("failed to register user", zap.String("username", req.Username), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	token, err := h.auth.Login(e.Request().Context(), req.Username, req.Password)
	if err != nil {
		l.Warn("login rejected", zap.String("username", req.Username))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) GetMe(e echo.Context) error {
	user, err := h.user.GetUserByUsername(e.Request().Context(), Identity(e))
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, user)
}

func (h *Handler) GetUser(e echo.Context) error {
	userID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	user, err := h.user.GetUser(e.Request().Context(), userID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, user)
}

func (h *Handler) ListTeams(e echo.Context) error {
	teams, err := h.team.ListTeams(e.Request().Context())
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	team := &model.Team{}
	if err := decodeRequest(e, team); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating team", zap.String("team_name", team.Name))

	created, err := h.team.CreateTeam(e.Request().Context(), Identity(e), team)
	if err != nil {
		l.Error("failed to create team", zap.String("team_name", team.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, created)
}

func (h *Handler) GetTeam(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	team, err := h.team.GetTeam(e.Request().Context(), teamID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, team)
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	patch := &struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}{}
	if err := decodeRequest(e, patch); err != nil {
		return h.transportError(e, err)
	}

	team, err := h.team.UpdateTeam(e.Request().Context(), Identity(e), teamID, &model.Team{
		Name:        patch.Name,
		Description: patch.Description,
	})
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, team)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	if err := h.team.DeleteTeam(e.Request().Context(), Identity(e), teamID); err != nil {
		return h.transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) AddTeamMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	var req struct {
		UserID int64 `json:"user_id" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("adding team member",
		zap.Int64("team_id", teamID),
		zap.Int64("member_id", req.UserID))

	team, err := h.team.AddMember(e.Request().Context(), Identity(e), teamID, req.UserID)
	if err != nil {
		l.Error("failed to add team member",
			zap.Int64("team_id", teamID),
			zap.Int64("member_id", req.UserID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) RemoveTeamMember(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	memberID, serr := h.pathID(e, "memberID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	team, err := h.team.RemoveMember(e.Request().Context(), Identity(e), teamID, memberID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, team)
}

func (h *Handler) GetTeamTasks(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	tasks, err := h.team.GetTeamTasks(e.Request().Context(), Identity(e), teamID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, tasks)
}

func (h *Handler) GetTeamNotes(e echo.Context) error {
	teamID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	return h.teamNotes(e, teamID)
}

func (h *Handler) GetTeamNotesAlias(e echo.Context) error {
	teamID, serr := h.pathID(e, "teamID")
	if serr != nil {
		return h.transportError(e, serr)
	}
	return h.teamNotes(e, teamID)
}

func (h *Handler) teamNotes(e echo.Context, teamID int64) error {
	notes, err := h.note.GetTeamNotes(e.Request().Context(), Identity(e), teamID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, notes)
}

func (h *Handler) ListTasks(e echo.Context) error {
	tasks, err := h.task.ListTasks(e.Request().Context())
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, tasks)
}

func (h *Handler) ListMyTasks(e echo.Context) error {
	tasks, err := h.task.ListMyTasks(e.Request().Context(), Identity(e))
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, tasks)
}

func (h *Handler) CreateTask(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	task := &model.Task{}
	if err := decodeRequest(e, task); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating task",
		zap.String("title", task.Title),
		zap.Int64("team_id", task.TeamID))

	created, err := h.task.CreateTask(e.Request().Context(), Identity(e), task)
	if err != nil {
		l.Error("failed to create task", zap.String("title", task.Title), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, created)
}

func (h *Handler) SetTaskStatus(e echo.Context) error {
	taskID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := decodeRequest(e, &req); err != nil {
		return h.transportError(e, err)
	}

	task, err := h.task.SetStatus(e.Request().Context(), Identity(e), taskID, model.TaskStatus(req.Status))
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, task)
}

func (h *Handler) AssignTask(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	taskID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	assigneeID, serr := h.pathID(e, "userID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	l.Info("assigning task",
		zap.Int64("task_id", taskID),
		zap.Int64("assignee_id", assigneeID))

	assignment, err := h.task.AssignTask(e.Request().Context(), Identity(e), taskID, assigneeID)
	if err != nil {
		l.Error("failed to assign task",
			zap.Int64("task_id", taskID),
			zap.Int64("assignee_id", assigneeID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, assignment)
}

func (h *Handler) ListNotes(e echo.Context) error {
	notes, err := h.note.ListNotes(e.Request().Context(), Identity(e))
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, notes)
}

func (h *Handler) CreateNote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	note := &model.Note{}
	if err := decodeRequest(e, note); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	created, err := h.note.CreateNote(e.Request().Context(), Identity(e), note)
	if err != nil {
		l.Error("failed to create note", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, created)
}

func (h *Handler) GetNote(e echo.Context) error {
	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	note, err := h.note.GetNote(e.Request().Context(), Identity(e), noteID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, note)
}

func (h *Handler) UpdateNote(e echo.Context) error {
	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	patch := &struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}{}
	if err := decodeRequest(e, patch); err != nil {
		return h.transportError(e, err)
	}

	note, err := h.note.UpdateNote(e.Request().Context(), Identity(e), noteID, &model.Note{
		Title:   patch.Title,
		Content: patch.Content,
	})
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, note)
}

func (h *Handler) DeleteNote(e echo.Context) error {
	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}

	if err := h.note.DeleteNote(e.Request().Context(), Identity(e), noteID); err != nil {
		return h.transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) ShareNote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	assigneeID, serr := h.pathID(e, "userID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	l.Info("sharing note",
		zap.Int64("note_id", noteID),
		zap.Int64("assignee_id", assigneeID))

	if err := h.note.ShareNote(e.Request().Context(), Identity(e), noteID, assigneeID); err != nil {
		l.Error("failed to share note",
			zap.Int64("note_id", noteID),
			zap.Int64("assignee_id", assigneeID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, map[string]string{"message": "Note shared successfully"})
}

func (h *Handler) LinkNoteTask(e echo.Context) error {
	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	taskID, serr := h.pathID(e, "taskID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	if err := h.note.LinkTask(e.Request().Context(), Identity(e), noteID, taskID); err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusCreated, map[string]string{"message": "Note linked to task successfully"})
}

func (h *Handler) UnlinkNoteTask(e echo.Context) error {
	noteID, serr := h.pathID(e, "id")
	if serr != nil {
		return h.transportError(e, serr)
	}
	taskID, serr := h.pathID(e, "taskID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	if err := h.note.UnlinkTask(e.Request().Context(), Identity(e), noteID, taskID); err != nil {
		return h.transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTaskNotes(e echo.Context) error {
	taskID, serr := h.pathID(e, "taskID")
	if serr != nil {
		return h.transportError(e, serr)
	}

	notes, err := h.note.GetTaskNotes(e.Request().Context(), Identity(e), taskID)
	if err != nil {
		return h.transportError(e, err)
	}
	return e.JSON(http.StatusOK, notes)
}

func (h *Handler) pathID(e echo.Context, name string) (int64, *service.Error) {
	id, err := strconv.ParseInt(e.Param(name), 10, 64)
	if err != nil {
		return 0, service.NewError(service.ErrorCodeInvalidBody, "invalid "+name+" path parameter")
	}
	return id, nil
}

func decodeRequest[T any](e echo.Context, req *T) *service.Error {
	if err := ProcessRequest(e, req, bindStep[T], validateStep[T]); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "invalid request body").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeInvalidCredentials:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeUserExists, service.ErrorCodeTeamExists, service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeAlreadyExists:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
