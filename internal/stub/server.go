// Package stub serves an in-process fake of the fine-tuning API. Each job walks
// through a scripted status sequence, one step per retrieve call.
package stub

import (
	"crypto/subtle"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"finetuner/internal/core"
	"finetuner/internal/util"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Options configures the fake service.
type Options struct {
	// APIKey is the bearer token every request must carry.
	APIKey string
	// Statuses is returned in order by successive retrieve calls; the last entry
	// repeats. An empty script keeps every job running forever.
	Statuses []core.JobStatus
	// Reply is the assistant content returned by chat completions.
	Reply string
	// JobError is attached to jobs that reach "failed".
	JobError *core.JobError
	// RetrieveStatusCode, when set, makes every retrieve call fail with that code.
	RetrieveStatusCode int
	// CreateStatusCode, when set, makes job creation fail with that code.
	CreateStatusCode int
	// EmptyChoices makes chat completions answer with no choices.
	EmptyChoices bool
}

type jobState struct {
	job   core.FineTuningJob
	polls int
}

// Server is the fake API.
type Server struct {
	opts   Options
	router *gin.Engine
	http   *httptest.Server

	mu          sync.Mutex
	jobs        map[string]*jobState
	files       map[string]core.File
	calls       map[string]int
	lastJobReq  *core.FineTuningJobRequest
	lastChatReq *core.ChatCompletionRequest
}

// New builds the fake service without starting a listener.
func New(opts Options) *Server {
	if opts.Reply == "" {
		opts.Reply = "Atishay is a software engineer."
	}
	s := &Server{
		opts:  opts,
		jobs:  make(map[string]*jobState),
		files: make(map[string]core.File),
		calls: make(map[string]int),
	}
	s.setupRoutes()
	return s
}

// Start creates the service and listens on a loopback port.
func Start(opts Options) *Server {
	s := New(opts)
	s.http = httptest.NewServer(s.router)
	return s
}

// URL returns the API base URL (including /v1) of a started server.
func (s *Server) URL() string {
	if s.http == nil {
		return ""
	}
	return s.http.URL + "/v1"
}

// Handler exposes the router for direct httptest use.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the listener.
func (s *Server) Close() {
	if s.http != nil {
		s.http.Close()
	}
}

// Calls returns how many requests reached the given operation.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// LastJobRequest returns the most recent job creation payload.
func (s *Server) LastJobRequest() *core.FineTuningJobRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastJobReq
}

// LastChatRequest returns the most recent chat completion payload.
func (s *Server) LastChatRequest() *core.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChatReq
}

func (s *Server) setupRoutes() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())

	api := s.router.Group("/v1")
	api.Use(s.authenticate)
	{
		api.POST(core.PathFiles, s.uploadFile)
		api.POST(core.PathFineTuningJobs, s.createJob)
		api.GET(core.PathFineTuningJobs+"/:id", s.retrieveJob)
		api.POST(core.PathChatCompletions, s.chatCompletions)
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(core.HeaderRequestID, "req_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
		c.Next()
	}
}

func (s *Server) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader(core.HeaderAuthorization), core.AuthBearerPrefix)
	if s.opts.APIKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.APIKey)) != 1 {
		respondWithOpenAIError(c, http.StatusUnauthorized, "invalid_request_error", "invalid_api_key", "Incorrect API key provided")
		c.Abort()
	}
}

// respondWithOpenAIError writes the {"error":{...}} envelope.
func respondWithOpenAIError(c *gin.Context, status int, errType, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{
		"message": message,
		"type":    errType,
		"param":   nil,
		"code":    code,
	}})
}

func (s *Server) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func bindSonic(c *gin.Context, dest any) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err == nil {
		err = sonic.Unmarshal(body, dest)
	}
	if err != nil {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid_request_error", "invalid_json", "We could not parse the JSON body of your request.")
		return false
	}
	return true
}

func (s *Server) uploadFile(c *gin.Context) {
	s.count(core.OpUploadFile)

	header, err := c.FormFile("file")
	if err != nil {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid_request_error", "missing_file", "file is required")
		return
	}
	purpose := c.PostForm("purpose")
	if purpose == "" {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid_request_error", "missing_purpose", "purpose is required")
		return
	}

	file := core.File{
		ID:        util.GenerateRandomID(core.FileIDPrefix),
		Object:    core.FileObjectType,
		Bytes:     header.Size,
		CreatedAt: time.Now().Unix(),
		Filename:  header.Filename,
		Purpose:   purpose,
	}
	s.mu.Lock()
	s.files[file.ID] = file
	s.mu.Unlock()

	c.JSON(http.StatusOK, file)
}

func (s *Server) createJob(c *gin.Context) {
	s.count(core.OpCreateJob)

	if s.opts.CreateStatusCode != 0 {
		respondWithOpenAIError(c, s.opts.CreateStatusCode, "server_error", "", "job creation failed")
		return
	}

	var req core.FineTuningJobRequest
	if !bindSonic(c, &req) {
		return
	}
	if req.TrainingFile == "" || req.Model == "" {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid_request_error", "missing_required_parameter", "training_file and model are required")
		return
	}

	job := core.FineTuningJob{
		ID:             util.GenerateRandomID(core.FineTuningJobIDPrefix),
		Object:         core.FineTuningJobObjectType,
		Model:          req.Model,
		Status:         core.JobStatusValidatingFiles,
		TrainingFile:   req.TrainingFile,
		ValidationFile: req.ValidationFile,
		CreatedAt:      time.Now().Unix(),
		Seed:           req.Seed,
		Suffix:         req.Suffix,
		Method:         req.Method,
	}

	s.mu.Lock()
	s.lastJobReq = &req
	s.jobs[job.ID] = &jobState{job: job}
	s.mu.Unlock()

	c.JSON(http.StatusOK, job)
}

func (s *Server) retrieveJob(c *gin.Context) {
	s.count(core.OpRetrieveJob)

	if s.opts.RetrieveStatusCode != 0 {
		respondWithOpenAIError(c, s.opts.RetrieveStatusCode, "server_error", "", "The server had an error while processing your request.")
		return
	}

	id := c.Param("id")
	s.mu.Lock()
	state, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		respondWithOpenAIError(c, http.StatusNotFound, "invalid_request_error", "fine_tune_not_found", "No fine-tuning job found with id "+id)
		return
	}
	s.advance(state)
	job := state.job
	s.mu.Unlock()

	c.JSON(http.StatusOK, job)
}

// advance applies the next scripted status. Must be called with mu held.
func (s *Server) advance(state *jobState) {
	status := core.JobStatusRunning
	if n := len(s.opts.Statuses); n > 0 {
		idx := state.polls
		if idx >= n {
			idx = n - 1
		}
		status = s.opts.Statuses[idx]
	}
	state.polls++
	state.job.Status = status

	switch status.Normalize() {
	case core.JobStatusSucceeded:
		finished := time.Now().Unix()
		state.job.FinishedAt = &finished
		state.job.FineTunedModel = fineTunedModelName(state.job)
	case core.JobStatusFailed:
		finished := time.Now().Unix()
		state.job.FinishedAt = &finished
		if s.opts.JobError != nil {
			jobErr := *s.opts.JobError
			state.job.Error = &jobErr
		}
	}
}

func fineTunedModelName(job core.FineTuningJob) string {
	suffix := strings.ToLower(job.Suffix)
	return core.FineTunedModelNamePrefix + job.Model + ":stub-org:" + suffix + ":" + strings.TrimPrefix(job.ID, core.FineTuningJobIDPrefix)[:8]
}

func (s *Server) chatCompletions(c *gin.Context) {
	s.count(core.OpChatCompletion)

	var req core.ChatCompletionRequest
	if !bindSonic(c, &req) {
		return
	}
	s.mu.Lock()
	s.lastChatReq = &req
	s.mu.Unlock()

	if len(req.Messages) == 0 {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid_request_error", "missing_required_parameter", "messages is required")
		return
	}

	resp := core.ChatCompletionResponse{
		ID:      util.GenerateRandomID(core.ResponseIDPrefix),
		Object:  core.ChatCompletionObjectType,
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []core.ChatCompletionChoice{},
	}
	if !s.opts.EmptyChoices {
		resp.Choices = append(resp.Choices, core.ChatCompletionChoice{
			Index:        0,
			Message:      core.ChatMessage{Role: core.RoleAssistant, Content: s.opts.Reply},
			FinishReason: core.FinishReasonStop,
		})
		resp.Usage = core.OpenAIUsage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20}
	}
	c.JSON(http.StatusOK, resp)
}
