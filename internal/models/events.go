package models

const (
	EventTypeAnalysisCompleted = "speech.analysis.completed"
	EventTypeAnalysisFailed    = "speech.analysis.failed"
)

// AnalysisCompleted is published after every analysis, including degraded ones.
type AnalysisCompleted struct {
	EventType         string   `json:"eventType" validate:"required"`
	AnalysisID        string   `json:"analysisId" validate:"required"`
	UserID            string   `json:"userId"`
	Timestamp         int64    `json:"timestamp" validate:"gt=0"`
	Language          string   `json:"language" validate:"required"`
	ReferenceText     string   `json:"referenceText"`
	RecognizedText    string   `json:"recognizedText"`
	OverallScore      int      `json:"overallScore" validate:"gte=0,lte=100"`
	SimilarityScore   int      `json:"similarityScore" validate:"gte=0,lte=100"`
	IssueTypes        []string `json:"issueTypes"`
	RecognitionEngine string   `json:"recognitionEngine"`
	DurationMs        int64    `json:"durationMs" validate:"gte=0"`
	Degraded          bool     `json:"degraded"`
}

// AnalysisFailed is published when the pipeline hit an unexpected error and
// a degraded report was returned.
type AnalysisFailed struct {
	EventType  string `json:"eventType" validate:"required"`
	AnalysisID string `json:"analysisId" validate:"required"`
	UserID     string `json:"userId"`
	Timestamp  int64  `json:"timestamp" validate:"gt=0"`
	Language   string `json:"language"`
	Reason     string `json:"reason" validate:"required"`
}
