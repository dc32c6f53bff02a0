package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/aegyptus-stt/internal/domains/transcription"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

const RequestIDHeader = "X-Request-ID"

// SpeechHandler handles speech-related HTTP requests
type SpeechHandler struct {
	service  transcription.TranscriptionService
	profiles []string
	logger   *Logger.Logger
}

// NewSpeechHandler creates a new speech handler
func NewSpeechHandler(service transcription.TranscriptionService, profiles []string, logger *Logger.Logger) *SpeechHandler {
	return &SpeechHandler{
		service:  service,
		profiles: profiles,
		logger:   logger,
	}
}

// Transcribe handles short clips recorded in the browser
// @Summary Transcribe an audio clip
// @Description Runs the baseline whisper worker on the uploaded clip
// @Tags Speech
// @Accept multipart/form-data
// @Produce json
// @Param audio formData file true "Audio clip (webm, mp4, wav, mp3, m4a, ogg)"
// @Param language formData string false "Language code or auto" default(auto)
// @Success 200 {object} TranscriptionResponse "Transcription, or FallbackResponse when degraded"
// @Failure 400 {object} ErrorResponse "Invalid upload"
// @Failure 408 {object} FallbackResponse "Worker timed out"
// @Failure 500 {object} FallbackResponse "Worker failed"
// @Router /api/speech/transcribe [post]
func (h *SpeechHandler) Transcribe(c *gin.Context) {
	h.transcribe(c, transcription.ProfileBaseline)
}

// TranscribeEnhanced handles long recordings with the larger model
// @Summary Transcribe a long recording
// @Tags Speech
// @Accept multipart/form-data
// @Produce json
// @Param audio formData file true "Audio recording"
// @Param language formData string false "Language code or auto" default(auto)
// @Success 200 {object} TranscriptionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 408 {object} FallbackResponse
// @Failure 500 {object} FallbackResponse
// @Router /api/speech/transcribe/enhanced [post]
func (h *SpeechHandler) TranscribeEnhanced(c *gin.Context) {
	h.transcribe(c, transcription.ProfileEnhanced)
}

func (h *SpeechHandler) transcribe(c *gin.Context, profile string) {
	audio, err := readUpload(c, "audio")
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Audio file too large", Details: err.Error()})
			return
		}
		h.logger.Debugf("bad multipart upload: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request data", Details: err.Error()})
		return
	}

	outcome := h.service.Handle(c.Request.Context(), transcription.Request{
		Audio:    audio,
		Language: c.PostForm("language"),
		Profile:  profile,
	})
	writeOutcome(c, outcome)
}

// writeOutcome is the only place an Outcome becomes an HTTP status.
func writeOutcome(c *gin.Context, outcome transcription.Outcome) {
	if outcome.RequestID != "" {
		c.Header(RequestIDHeader, outcome.RequestID)
	}

	switch outcome.Kind {
	case transcription.OutcomeOK:
		c.JSON(http.StatusOK, newTranscriptionResponse(outcome.Result))
	case transcription.OutcomeDegraded:
		c.JSON(http.StatusOK, FallbackResponse{
			Text:     outcome.Text,
			Language: outcome.Language,
			Fallback: true,
			Error:    outcome.Reason,
		})
	default:
		switch {
		case outcome.IsValidation():
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: outcome.Reason})
		case outcome.IsTimeout():
			c.JSON(http.StatusRequestTimeout, FallbackResponse{
				Text:     outcome.Text,
				Language: outcome.Language,
				Fallback: true,
			})
		default:
			c.JSON(http.StatusInternalServerError, FallbackResponse{
				Text:     outcome.Text,
				Language: outcome.Language,
				Fallback: true,
				Error:    outcome.Reason,
			})
		}
	}
}

// Synthesize answers text-to-speech requests
// @Summary Speak text
// @Description Server-side synthesis is not available; the client is told to use its own speech engine
// @Tags Speech
// @Accept json
// @Produce json
// @Param request body SynthesizeRequest true "Text to speak"
// @Success 200 {object} SynthesizeResponse
// @Failure 400 {object} ErrorResponse "No text provided"
// @Router /api/speech/synthesize [post]
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	var req SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("synthesize: unreadable body: %v", err)
		c.JSON(http.StatusOK, SynthesizeResponse{Fallback: true, Error: "TTS service temporarily unavailable"})
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No text provided"})
		return
	}

	c.JSON(http.StatusOK, SynthesizeResponse{
		Fallback: true,
		Message:  "Using client-side speech synthesis",
	})
}

// Status reports whether the speech runtime is usable
// @Summary Speech runtime status
// @Tags Speech
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /api/speech/status [get]
func (h *SpeechHandler) Status(c *gin.Context) {
	report := h.service.Status(c.Request.Context())
	c.JSON(http.StatusOK, StatusResponse{Environment: report, Profiles: h.profiles})
}
