package domain

// RunStatus tracks each pipeline stage for a single summary run.
type RunStatus string

const (
	RunStatusIdle             RunStatus = "idle"
	RunStatusFetchingCaptions RunStatus = "fetching_captions"
	RunStatusTranscribing     RunStatus = "transcribing"
	RunStatusSummarizing      RunStatus = "summarizing"
	RunStatusDone             RunStatus = "done"
	RunStatusFailed           RunStatus = "failed"
	RunStatusCancelled        RunStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelDir        string `json:"modelDir"`
	Model           string `json:"model"`
	Language        string `json:"language"`
	SummaryLanguage string `json:"summaryLanguage"`
	OpenAIAPIKey    string `json:"openAiApiKey"`
}

// Run stores the identity, inputs, lifecycle status, and outcome of one
// pipeline invocation. Summary and the no-credential placeholder share
// the Summary field; UsedCaptions true means the speech recognizer was
// never invoked for this run.
type Run struct {
	ID            string    `json:"id"`
	InputPath     string    `json:"inputPath"`
	VideoID       string    `json:"videoId,omitempty"`
	Model         string    `json:"model"`
	Status        RunStatus `json:"status"`
	Transcript    string    `json:"transcript,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	UsedCaptions  bool      `json:"usedCaptions"`
	StatusMessage string    `json:"statusMessage,omitempty"`
}
