package eval

// #region config
// Config bounds the evaluator bookkeeping.
type Config struct {
	PendingCap int // votes awaiting an outcome; oldest evicted beyond this
	ClassCount int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PendingCap: 256,
		ClassCount: 3,
	}
}

// #endregion config

// #region report
// Report summarizes outcome bookkeeping for status and replay surfaces.
type Report struct {
	Turns          int     `json:"turns"`   // votes paired with an outcome
	Correct        int     `json:"correct"` // fused vote matched the remapped truth
	Accuracy       float64 `json:"accuracy"`
	Confusion      [][]int `json:"confusion"` // [tree prediction][truth] over the class space
	AlarmPrecision float64 `json:"alarm_precision"`
	Pending        int     `json:"pending"`
}

// #endregion report
