package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/aegyptus-stt/internal/domains/transcription"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

type stubService struct {
	outcome transcription.Outcome
	report  whisper.ProbeReport
	got     []transcription.Request
}

func (s *stubService) Handle(_ context.Context, req transcription.Request) transcription.Outcome {
	s.got = append(s.got, req)
	return s.outcome
}

func (s *stubService) Status(context.Context) whisper.ProbeReport { return s.report }

func newTestEngine(svc transcription.TranscriptionService, maxBody int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := Logger.NewNop()
	h := NewSpeechHandler(svc, []string{"baseline", "enhanced"}, logger)

	r := gin.New()
	r.Use(ErrorHandlerMiddleware(logger), CORSMiddleware(), BodyLimitMiddleware(maxBody))
	r.POST("/transcribe", h.Transcribe)
	r.POST("/transcribe/enhanced", h.TranscribeEnhanced)
	r.POST("/synthesize", h.Synthesize)
	r.GET("/status", h.Status)
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func doUpload(t *testing.T, r http.Handler, path string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "clip.webm", "audio/webm", data, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTranscribeSuccess(t *testing.T) {
	svc := &stubService{outcome: transcription.Outcome{
		Kind:      transcription.OutcomeOK,
		RequestID: "req-1",
		Result:    transcription.Result{Success: true, Text: "hello", Language: "en", Confidence: 0.9, Duration: 1.5},
	}}
	r := newTestEngine(svc, 1<<20)

	rec := doUpload(t, r, "/transcribe", []byte("audio"), map[string]string{"language": "fr"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	body := decode(t, rec)
	assert.Equal(t, "hello", body["text"])
	assert.Equal(t, "en", body["language"])
	assert.Equal(t, 0.9, body["confidence"])
	assert.Equal(t, 1.5, body["duration"])
	assert.NotContains(t, body, "fallback")

	require.Len(t, svc.got, 1)
	got := svc.got[0]
	assert.Equal(t, transcription.ProfileBaseline, got.Profile)
	assert.Equal(t, "fr", got.Language)
	require.NotNil(t, got.Audio)
	assert.Equal(t, "clip.webm", got.Audio.Filename)
	assert.Equal(t, "audio/webm", got.Audio.ContentType)
	assert.Equal(t, []byte("audio"), got.Audio.Data)
}

func TestTranscribeEnhancedUsesEnhancedProfile(t *testing.T) {
	svc := &stubService{outcome: transcription.Outcome{Kind: transcription.OutcomeOK}}
	r := newTestEngine(svc, 1<<20)

	doUpload(t, r, "/transcribe/enhanced", []byte("audio"), nil)
	require.Len(t, svc.got, 1)
	assert.Equal(t, transcription.ProfileEnhanced, svc.got[0].Profile)
	assert.Equal(t, "", svc.got[0].Language)
}

func TestTranscribeMissingFileReachesService(t *testing.T) {
	svc := &stubService{outcome: transcription.Outcome{
		Kind:   transcription.OutcomeFailed,
		Err:    &transcription.ValidationError{Field: "audio", Reason: "No audio file provided"},
		Reason: "No audio file provided",
	}}
	r := newTestEngine(svc, 1<<20)

	rec := doUpload(t, r, "/transcribe", nil, map[string]string{"language": "en"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No audio file provided", decode(t, rec)["error"])
	require.Len(t, svc.got, 1)
	assert.Nil(t, svc.got[0].Audio)
}

func TestTranscribeBodyTooLarge(t *testing.T) {
	svc := &stubService{}
	r := newTestEngine(svc, 512)

	rec := doUpload(t, r, "/transcribe", bytes.Repeat([]byte("a"), 4096), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Audio file too large", decode(t, rec)["error"])
	assert.Empty(t, svc.got)
}

func TestWriteOutcomeMapping(t *testing.T) {
	cases := []struct {
		name     string
		outcome  transcription.Outcome
		status   int
		fallback bool
		errText  string
	}{
		{
			name: "environment unavailable",
			outcome: transcription.Outcome{
				Kind: transcription.OutcomeDegraded, Text: transcription.EnvironmentFallbackText, Language: "en",
				Reason: "No module named 'torch'", Err: &transcription.EnvironmentUnavailableError{Reason: "No module named 'torch'"},
			},
			status: http.StatusOK, fallback: true, errText: "No module named 'torch'",
		},
		{
			name: "timeout",
			outcome: transcription.Outcome{
				Kind: transcription.OutcomeFailed, Text: transcription.TimeoutFallbackText, Language: "en",
				Err: &whisper.TimeoutError{Limit: time.Minute}, Reason: "whisper transcription timeout (1m0s)",
			},
			status: http.StatusRequestTimeout, fallback: true,
		},
		{
			name: "worker error",
			outcome: transcription.Outcome{
				Kind: transcription.OutcomeFailed, Text: transcription.FailureFallbackText, Language: "en",
				Err: &whisper.WorkerError{ExitCode: 1}, Reason: "whisper worker exited with code 1",
			},
			status: http.StatusInternalServerError, fallback: true, errText: "whisper worker exited with code 1",
		},
		{
			name: "validation",
			outcome: transcription.Outcome{
				Kind: transcription.OutcomeFailed, Err: &transcription.ValidationError{Reason: "Audio file is empty"}, Reason: "Audio file is empty",
			},
			status: http.StatusBadRequest, errText: "Audio file is empty",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(&stubService{outcome: tc.outcome}, 1<<20)

			rec := doUpload(t, r, "/transcribe", []byte("x"), nil)
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			if tc.fallback {
				assert.Equal(t, true, body["fallback"])
				assert.Equal(t, 0.0, body["confidence"])
				assert.Equal(t, tc.outcome.Text, body["text"])
				assert.Equal(t, "en", body["language"])
			}
			if tc.errText != "" {
				assert.Equal(t, tc.errText, body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}
		})
	}
}

func TestSynthesize(t *testing.T) {
	r := newTestEngine(&stubService{}, 1<<20)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"text":"Welcome","language":"en","voice":"female","speed":1.0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["fallback"])
	assert.Equal(t, "Using client-side speech synthesis", decode(t, rec)["message"])

	rec = post(`{"language":"en"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No text provided", decode(t, rec)["error"])

	rec = post(`not json`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TTS service temporarily unavailable", decode(t, rec)["error"])
}

func TestStatus(t *testing.T) {
	r := newTestEngine(&stubService{report: whisper.ProbeReport{Error: "environment check timeout"}}, 1<<20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Environment.Available)
	assert.Equal(t, "environment check timeout", body.Environment.Error)
	assert.Equal(t, []string{"baseline", "enhanced"}, body.Profiles)
}

func TestPanicBecomesFallbackBody(t *testing.T) {
	r := newTestEngine(&stubService{}, 1<<20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, transcription.FailureFallbackText, body["text"])
}

func TestCORSPreflight(t *testing.T) {
	r := newTestEngine(&stubService{}, 1<<20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/transcribe", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIsBodyTooLarge(t *testing.T) {
	assert.True(t, isBodyTooLarge(&http.MaxBytesError{Limit: 1}))
	assert.False(t, isBodyTooLarge(errors.New("other")))
}
