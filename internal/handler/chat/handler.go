package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/analysis/reply"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	tutormodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
	chatService "github.com/zhouzirui/hanyu-tutor/backend/internal/service/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/pkg/utils"
)

// probeTimeout bounds the startup probe so session creation cannot hang on a dead network.
const probeTimeout = 20 * time.Second

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	tutor   *tutor.Orchestrator
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, orchestrator *tutor.Orchestrator) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		tutor:   orchestrator,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Delete("/session/{sessionID}", h.handleDeleteSession)
	r.Post("/session/{sessionID}/messages", h.handleSubmit)
}

type failureView struct {
	Kind    remote.Kind `json:"kind"`
	Message string      `json:"message"`
}

type messageView struct {
	chat.Message
	Main       string `json:"main,omitempty"`
	Pinyin     string `json:"pinyin,omitempty"`
	Audio      string `json:"audio,omitempty"`
	AudioError string `json:"audioError,omitempty"`
}

type sessionView struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"createdAt"`
	Tutor         tutormodel.Profile `json:"tutor"`
	Messages      []messageView      `json:"messages"`
	InputDisabled bool               `json:"inputDisabled"`
	ProbeError    string             `json:"probeError,omitempty"`
}

type turnView struct {
	User        messageView   `json:"user"`
	Assistant   *messageView  `json:"assistant,omitempty"`
	Failure     *failureView  `json:"failure,omitempty"`
	Transitions []tutor.State `json:"transitions"`
}

// handleCreateSession 创建会话并执行启动探测
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.chatSvc.CreateSession(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	err := h.chatSvc.RunTurn(ctx, session.ID, func(s *chat.Session) error {
		// a failed probe is recorded on the session and reported through the view
		_ = h.tutor.Probe(ctx, s)
		return nil
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondSession(w, r, http.StatusCreated, session.ID)
}

// handleGetSession 返回会话及其全部消息
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.respondSession(w, r, http.StatusOK, chi.URLParam(r, "sessionID"))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 执行一个完整的对话回合
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	var result tutor.TurnResult
	err := h.chatSvc.RunTurn(r.Context(), sessionID, func(s *chat.Session) error {
		var turnErr error
		result, turnErr = h.tutor.Submit(r.Context(), s, payload.Content)
		return turnErr
	})

	var failure *remote.Failure
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, toTurnView(result))
	case errors.As(err, &failure):
		utils.RespondJSON(w, http.StatusBadGateway, toTurnView(result))
	default:
		h.respondServiceError(w, err)
	}
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, status int, sessionID string) {
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, status, h.toSessionView(session))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tutor.ErrEmptyInput):
		utils.RespondError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tutor.ErrInputDisabled), errors.Is(err, chatService.ErrTurnInProgress):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		zap.S().Errorf("[chat] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) toSessionView(s chat.Session) sessionView {
	view := sessionView{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		Tutor:         h.tutor.Profile(),
		Messages:      make([]messageView, 0, len(s.History)),
		InputDisabled: s.InputDisabled,
		ProbeError:    s.ProbeError,
	}
	for _, msg := range s.History {
		mv := newMessageView(msg)
		if artifact, ok := s.Artifacts[msg.ID]; ok {
			mv.Audio = artifact.DataURI()
		}
		mv.AudioError = s.AudioErrors[msg.ID]
		view.Messages = append(view.Messages, mv)
	}
	return view
}

func toTurnView(result tutor.TurnResult) turnView {
	view := turnView{
		User:        newMessageView(result.User),
		Transitions: result.Transitions,
	}
	if result.Assistant != nil {
		mv := newMessageView(*result.Assistant)
		if result.Audio != nil {
			mv.Audio = result.Audio.DataURI()
		}
		mv.AudioError = result.AudioError
		view.Assistant = &mv
	}
	if result.Failure != nil {
		view.Failure = &failureView{Kind: result.Failure.Kind, Message: result.Failure.UserMessage()}
	}
	return view
}

func newMessageView(msg chat.Message) messageView {
	mv := messageView{Message: msg}
	if msg.Role == chat.RoleAssistant {
		sections := reply.Split(msg.Content)
		mv.Main = sections.Main
		mv.Pinyin = sections.Pinyin
	}
	return mv
}
