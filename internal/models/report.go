// Package models defines the data structures for analysis reports and events.
package models

// IssueType identifies one kind of detected pronunciation problem.
type IssueType string

const (
	IssueRecognitionFailed     IssueType = "recognition_failed"
	IssuePronunciationAccuracy IssueType = "pronunciation_accuracy"
	IssueCapitalization        IssueType = "capitalization"
	IssueVolume                IssueType = "volume"
	IssuePitchStability        IssueType = "pitch_stability"
	IssueGeneralPronunciation  IssueType = "general_pronunciation"
	IssueSpeakingRate          IssueType = "speaking_rate"
	IssueClarity               IssueType = "clarity"
	IssueSystemError           IssueType = "system_error"
)

// Severity of an issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the enumerated severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Issue is one detected problem in a report.
type Issue struct {
	Type        IssueType `json:"type" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Severity    Severity  `json:"severity" validate:"required,oneof=low medium high"`
}

// AudioFeaturesSummary is the caller-facing view of the acoustic features.
type AudioFeaturesSummary struct {
	Duration       float64 `json:"duration" validate:"gte=0"`
	PitchStability float64 `json:"pitch_stability" validate:"gte=0,lte=100"`
	ClarityScore   float64 `json:"clarity_score" validate:"gte=0,lte=100"`
}

// AnalysisReport is the complete result of one pronunciation analysis.
type AnalysisReport struct {
	AnalysisID                 string               `json:"analysis_id" validate:"required"`
	UserID                     string               `json:"user_id,omitempty"`
	OverallScore               int                  `json:"overall_score" validate:"gte=0,lte=100"`
	SimilarityScore            int                  `json:"similarity_score" validate:"gte=0,lte=100"`
	RecognizedText             string               `json:"recognized_text"`
	Language                   string               `json:"language" validate:"required"`
	Issues                     []Issue              `json:"issues" validate:"dive"`
	Suggestions                []string             `json:"suggestions" validate:"min=1"`
	AudioFeatures              AudioFeaturesSummary `json:"audio_features"`
	ImprovementTip             string               `json:"improvement_tip" validate:"required"`
	PersonalizedAdvice         []string             `json:"personalized_advice" validate:"min=1"`
	NextExerciseRecommendation string               `json:"next_exercise_recommendation" validate:"required"`
	RecognitionEngine          string               `json:"recognition_engine"`
	DegradedStages             []string             `json:"degraded_stages,omitempty"`
}

// HasIssue reports whether the report contains an issue of type t.
func (r AnalysisReport) HasIssue(t IssueType) bool {
	for _, is := range r.Issues {
		if is.Type == t {
			return true
		}
	}
	return false
}
