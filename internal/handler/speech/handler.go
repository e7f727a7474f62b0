package speech

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
	"github.com/zhouzirui/hanyu-tutor/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	Provider() speech.Provider
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc    SpeechService
	defaultVoice string
}

// New 创建语音处理器
func New(speechSvc SpeechService, defaultVoice string) *Handler {
	return &Handler{
		speechSvc:    speechSvc,
		defaultVoice: defaultVoice,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleSynthesize 处理文本转语音请求，成功时直接返回 MP3。
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = h.defaultVoice
	}
	req.Format = "mp3"

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		zap.S().Warnf("[speech] TTS error: %v", err)
		message := "speech synthesis failed"
		var failure *remote.Failure
		if errors.As(err, &failure) {
			message = failure.UserMessage()
		}
		utils.RespondError(w, http.StatusBadGateway, message)
		return
	}

	w.Header().Set("Content-Type", resp.MimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "inline; filename=speech."+resp.Format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		zap.S().Warnf("[speech] failed to write audio response: %v", err)
	}
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  "speech",
		"provider": string(h.speechSvc.Provider()),
	})
}
