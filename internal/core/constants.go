package core

import "time"

// Default job constants
const (
	DefaultAPIBaseURL     = "https://api.openai.com/v1"
	DefaultTrainingFileID = "file-LKymkdQVjywvhXMCuskyrM"
	DefaultBaseModel      = "gpt-4o-mini-2024-07-18"
	DefaultSuffix         = "MyChatbot"
	DefaultNEpochs        = 4
	DefaultPollInterval   = 15 * time.Second
	DefaultTestPrompt     = "Hello! Tell me about Atishay."
	DefaultTemperature    = 0.1
)

// Fine-tuning method constants
const (
	MethodTypeSupervised = "supervised"
	FilePurposeFineTune  = "fine-tune"
)

// API endpoint path constants (relative to base URL)
const (
	PathFineTuningJobs  = "/fine_tuning/jobs"
	PathChatCompletions = "/chat/completions"
	PathFiles           = "/files"
)

// API object type constants
const (
	FineTuningJobObjectType  = "fine_tuning.job"
	ChatCompletionObjectType = "chat.completion"
	FileObjectType           = "file"
	FinishReasonStop         = "stop"
)

// Header constants
const (
	ContentTypeJSON           = "application/json"
	HeaderContentType         = "Content-Type"
	HeaderAuthorization       = "Authorization"
	HeaderAccept              = "Accept"
	HeaderOrganization        = "OpenAI-Organization"
	HeaderProject             = "OpenAI-Project"
	HeaderClientRequestID     = "X-Client-Request-Id"
	HeaderRequestID           = "X-Request-Id"
	AuthBearerPrefix          = "Bearer "
	ResponseIDPrefix          = "chatcmpl-"
	FineTuningJobIDPrefix     = "ftjob-"
	FileIDPrefix              = "file-"
	FineTunedModelNamePrefix  = "ft:"
	HyperparameterAutoLiteral = "auto"
)

// Role constants
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

// API operation names used in metrics and logs
const (
	OpCreateJob      = "create_job"
	OpRetrieveJob    = "retrieve_job"
	OpChatCompletion = "chat_completion"
	OpUploadFile     = "upload_file"
)
