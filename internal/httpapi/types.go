package httpapi

import (
	"time"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeVectorLength     = "VECTOR_LENGTH"
	CodeLabelRange       = "LABEL_RANGE"
	CodeFeedbackRejected = "FEEDBACK_REJECTED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeStoreFailure     = "STORE_FAILURE"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// #region requests
// SampleRequest is the ingest body: one telemetry sample plus the
// collector's provisional label.
type SampleRequest struct {
	sample.TelemetrySample
	Label int `json:"label"`
}

// FeedbackRequest is one ground-truth correction. The turn id inside the
// sample pairs it with an earlier vote.
type FeedbackRequest struct {
	sample.TelemetrySample
	Label      int       `json:"label"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// #endregion requests

// #region responses
// FeedbackResponse reports the gate decision and the bookkeeping of a
// committed correction.
type FeedbackResponse struct {
	TurnID          string  `json:"turn_id,omitempty"`
	Action          string  `json:"action"`
	Reason          string  `json:"reason"`
	TrustScore      float64 `json:"trust_score"`
	EffectiveWeight float64 `json:"effective_weight"`
	Paired          bool    `json:"paired"`
	TreeCorrect     bool    `json:"tree_correct"`
	SPCCorrect      bool    `json:"spc_correct"`
	Reweighted      bool    `json:"reweighted"`
	WeightTree      float64 `json:"weight_tree"`
	WeightSPC       float64 `json:"weight_spc"`
	Drift           bool    `json:"drift,omitempty"`
}

// #endregion responses
