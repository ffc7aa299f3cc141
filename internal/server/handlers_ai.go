package server

import (
	"net/http"
	"time"

	"github.com/fluentprep/fluentprep/internal/guard"
	"github.com/fluentprep/fluentprep/internal/identity"
	"github.com/fluentprep/fluentprep/internal/logging"
	"github.com/fluentprep/fluentprep/internal/middleware"
	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/fluentprep/fluentprep/internal/monitoring"
	"github.com/fluentprep/fluentprep/internal/providers"
	"github.com/fluentprep/fluentprep/internal/usage"
	"github.com/gin-gonic/gin"
)

const tutorSystemPrompt = `You are an IELTS speaking tutor having a natural, ongoing conversation.
Keep replies to 1-2 sentences, give brief feedback, maintain rolling band scores (0-9),
and always continue the dialogue with a follow-up question.
Respond with a JSON object: {"tutor_reply", "micro_feedback", "scores", "follow_up"}.`

const pronunciationSystemPrompt = `You are a pronunciation coach. Compare the transcript of a learner's
speech against the reference text. Score accuracy, fluency and completeness from 0-100,
list mispronounced words, and give two short improvement tips.
Respond with a JSON object: {"accuracy", "fluency", "completeness", "mispronounced", "tips"}.`

const pteSpeakingSystemPrompt = `You are a PTE Academic speaking examiner. Evaluate the response for the
given task type. Score content, oral fluency and pronunciation on the 10-90 PTE scale
and justify each score in one sentence.
Respond with a JSON object: {"content", "oral_fluency", "pronunciation", "comments"}.`

const translateSystemPrompt = `You are a translation engine for language learners. Translate the text
into the target language. Preserve tone and register. Return only the translation.`

// guardRequest runs the shared entry checks for a guarded AI endpoint:
// the already-resolved identity, payload size, then the quota verdict.
// It writes the error response itself and reports whether to proceed.
func (s *APIServer) guardRequest(c *gin.Context, body any) (identity.Identity, bool) {
	ident := middleware.IdentityFromContext(c)

	if err := c.ShouldBindJSON(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return ident, false
	}

	if check := guard.ValidateInputSize(body, s.config.Guard.MaxBodyKB); !check.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   check.Error,
		})
		return ident, false
	}

	decision := s.quota.Check(c.Request.Context(), ident.UserID, ident.PlanTier)
	monitoring.SetQuotaRemaining(string(decision.PlanTier), float64(decision.RemainingCalls))
	if decision.IsLimited {
		logging.LogQuotaDenied(middleware.RequestIDFromContext(c), ident.UserID, string(ident.PlanTier))
		monitoring.RecordQuotaDenial(string(decision.PlanTier))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":   false,
			"error":     "You have exceeded your daily API limit.",
			"remaining": 0,
			"resetTime": decision.ResetTime.UTC().Format(time.RFC3339),
			"isPremium": ident.PlanTier == models.PlanPremium,
		})
		return ident, false
	}

	return ident, true
}

// finishCall does the post-success bookkeeping: count the call against
// the quota, record the call log, and emit metrics. None of it can fail
// the request; the provider call already succeeded.
func (s *APIServer) finishCall(c *gin.Context, ident identity.Identity, provider, model, endpoint string, started time.Time) {
	s.quota.RecordCall(c.Request.Context(), ident.UserID)
	monitoring.RecordQuotaUsage(string(ident.PlanTier))
	s.logCall(c, ident, provider, model, endpoint, time.Since(started))
}

// logCall records one provider leg in the call log. Endpoints that fan
// out to several providers log every leg, so cost accounting covers
// each upstream call even though the quota counts the request once.
func (s *APIServer) logCall(c *gin.Context, ident identity.Identity, provider, model, endpoint string, latency time.Duration) {
	requestID := middleware.RequestIDFromContext(c)
	latencyMs := int(latency.Milliseconds())

	s.usage.Record(c.Request.Context(), &models.CallLog{
		UserID:    ident.UserID,
		RequestID: &requestID,
		Provider:  provider,
		Model:     model,
		Endpoint:  endpoint,
		LatencyMs: &latencyMs,
		Status:    models.CallStatusSuccess,
		CostUSD:   usage.CostFor(provider),
	})

	logging.LogProviderCall(&logging.ProviderCallEntry{
		RequestID: requestID,
		UserID:    ident.UserID,
		Provider:  provider,
		Model:     model,
		Endpoint:  endpoint,
		Latency:   latency,
		Status:    "success",
	})
}

// respondProviderError surfaces a downstream provider failure as a 500
// with the raw error message. No retry happens at this layer.
func respondProviderError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// ConversationTutorRequest is the request body for the conversation tutor
type ConversationTutorRequest struct {
	Messages []providers.Message `json:"messages" binding:"required,min=1,dive"`
}

// handleConversationTutor proxies a tutoring conversation turn to Gemini
func (s *APIServer) handleConversationTutor(c *gin.Context) {
	var req ConversationTutorRequest
	ident, ok := s.guardRequest(c, &req)
	if !ok {
		return
	}

	started := time.Now()
	reply, err := s.providers.Chat.Generate(c.Request.Context(), tutorSystemPrompt, req.Messages)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	s.finishCall(c, ident, "gemini", s.providers.Chat.Model(), "conversation-tutor", started)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reply":   reply,
	})
}

// PronunciationRequest is the request body for pronunciation analysis
type PronunciationRequest struct {
	AudioURL      string `json:"audio_url" binding:"required,url"`
	ReferenceText string `json:"reference_text" binding:"required"`
}

// handlePronunciationAnalysis transcribes the learner's audio with
// AssemblyAI and scores it against the reference text with Gemini
func (s *APIServer) handlePronunciationAnalysis(c *gin.Context) {
	var req PronunciationRequest
	ident, ok := s.guardRequest(c, &req)
	if !ok {
		return
	}

	started := time.Now()
	transcript, err := s.providers.Speech.Transcribe(c.Request.Context(), req.AudioURL)
	if err != nil {
		respondProviderError(c, err)
		return
	}
	transcribeLatency := time.Since(started)

	scoringStarted := time.Now()
	analysis, err := s.providers.Chat.Generate(c.Request.Context(), pronunciationSystemPrompt, []providers.Message{
		{Role: "user", Content: "Reference text: " + req.ReferenceText + "\nTranscript: " + transcript.Text},
	})
	if err != nil {
		respondProviderError(c, err)
		return
	}

	// Two upstream calls, one quota unit: both legs go into the call
	// log so their costs are counted, while the quota increments once
	s.logCall(c, ident, "assemblyai", "best", "pronunciation-analysis", transcribeLatency)
	s.finishCall(c, ident, "gemini", s.providers.Chat.Model(), "pronunciation-analysis", scoringStarted)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"transcript": transcript.Text,
		"confidence": transcript.Confidence,
		"analysis":   analysis,
	})
}

// PTESpeakingRequest is the request body for the PTE speaking evaluator
type PTESpeakingRequest struct {
	Transcript string `json:"transcript" binding:"required"`
	TaskType   string `json:"task_type" binding:"required,oneof=read_aloud repeat_sentence describe_image retell_lecture answer_short_question"`
}

// handlePTESpeakingEvaluator scores a PTE speaking response with DeepSeek
func (s *APIServer) handlePTESpeakingEvaluator(c *gin.Context) {
	var req PTESpeakingRequest
	ident, ok := s.guardRequest(c, &req)
	if !ok {
		return
	}

	started := time.Now()
	evaluation, err := s.providers.Completion.Complete(c.Request.Context(), pteSpeakingSystemPrompt,
		"Task type: "+req.TaskType+"\nResponse transcript: "+req.Transcript)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	s.finishCall(c, ident, "deepseek", s.providers.Completion.Model(), "pte-speaking-evaluator", started)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"evaluation": evaluation,
	})
}

// TranslateRequest is the request body for translation
type TranslateRequest struct {
	Text           string `json:"text" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required"`
}

// handleTranslate proxies a translation request to DeepSeek
func (s *APIServer) handleTranslate(c *gin.Context) {
	var req TranslateRequest
	ident, ok := s.guardRequest(c, &req)
	if !ok {
		return
	}

	started := time.Now()
	translation, err := s.providers.Completion.Complete(c.Request.Context(), translateSystemPrompt,
		"Target language: "+req.TargetLanguage+"\nText: "+req.Text)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	s.finishCall(c, ident, "deepseek", s.providers.Completion.Model(), "translate", started)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"translation": translation,
	})
}

// TTSRequest is the request body for text-to-speech
type TTSRequest struct {
	Text  string `json:"text" binding:"required,max=5000"`
	Voice string `json:"voice"`
}

// handleTextToSpeech synthesizes audio with Google TTS and returns it
// base64-encoded
func (s *APIServer) handleTextToSpeech(c *gin.Context) {
	var req TTSRequest
	ident, ok := s.guardRequest(c, &req)
	if !ok {
		return
	}

	started := time.Now()
	audio, err := s.providers.TTS.Synthesize(c.Request.Context(), req.Text, req.Voice)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	s.finishCall(c, ident, "google-tts", "neural2", "tts", started)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"audioContent": audio, // JSON-encoded as base64
		"format":       "mp3",
	})
}
