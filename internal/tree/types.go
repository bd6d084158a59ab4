package tree

import "errors"

var (
	// ErrVectorLength is returned when a feature vector does not match the
	// configured feature count.
	ErrVectorLength = errors.New("feature vector length mismatch")
	// ErrLabelRange is returned for a class label outside the configured range.
	ErrLabelRange = errors.New("class label out of range")
	// ErrFeedbackRange is returned for a feedback confidence outside [0,1].
	ErrFeedbackRange = errors.New("feedback confidence out of range")
	// ErrBadModel is returned when a serialized model fails validation.
	ErrBadModel = errors.New("malformed tree model")
)

// #region config
// Config controls tree growth and drift recovery. FeatureCount and
// ClassCount are fixed at construction.
type Config struct {
	// FeatureCount is the vector length N every call must match.
	FeatureCount int
	// ClassCount is the number of labels; labels are 0..ClassCount-1.
	ClassCount int
	// GracePeriod is the leaf instance count a leaf must exceed before it
	// may split.
	GracePeriod int
	// HoeffdingDelta is the split-confidence parameter.
	HoeffdingDelta float64
	// FeedbackWeight is the default extra-weight multiplier for corrected
	// labels; the update repeats ceil(weight x confidence) times.
	FeedbackWeight float64
	// FeedbackCap bounds the replay ring of recent feedback records.
	FeedbackCap int
}

// DefaultConfig returns the canonical 16-feature, 3-class settings.
func DefaultConfig() Config {
	return Config{
		FeatureCount:   16,
		ClassCount:     3,
		GracePeriod:    200,
		HoeffdingDelta: 0.05,
		FeedbackWeight: 3.0,
		FeedbackCap:    100,
	}
}

// #endregion config

// #region results
// Prediction is the read-only classification output. Distribution always has
// ClassCount entries and sums to 1.
type Prediction struct {
	Label        int       `json:"label"`
	Confidence   float64   `json:"confidence"`
	Distribution []float64 `json:"distribution"`
}

// TrainResult reports the side effects of one training step.
type TrainResult struct {
	Drift      bool    `json:"drift"`
	Accuracy   float64 `json:"accuracy"`
	SplitCount int     `json:"split_count"`
}

// Feedback carries a corrected label and how much to trust it. Weight <= 0
// falls back to the configured multiplier.
type Feedback struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight,omitempty"`
}

// feedbackRecord pairs a corrected label with the vector it applies to; the
// ring of recent records is replayed after a drift reset.
type feedbackRecord struct {
	vector     []float64
	label      int
	confidence float64
	weight     float64
}

// #endregion results
