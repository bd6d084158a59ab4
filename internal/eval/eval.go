package eval

// #region evaluator
// Evaluator pairs fused votes with later ground-truth outcomes. Votes wait
// in a bounded pending set keyed by turn id; feedback for an unknown or
// evicted turn is counted nowhere.
type Evaluator struct {
	config Config

	pending map[string]pendingVote
	order   []string // fifo of pending turn ids for eviction

	turns   int
	correct int

	confusion [][]int // [tree prediction][truth]

	alarmOutcomes int // alarmed votes that received an outcome
	alarmHits     int // of those, truth was overuse
}

type pendingVote struct {
	vote      int
	treeLabel int
	alarmed   bool
}

// New creates an evaluator with the given configuration, filling zero
// values from the defaults.
func New(config Config) *Evaluator {
	defaults := DefaultConfig()
	if config.PendingCap <= 0 {
		config.PendingCap = defaults.PendingCap
	}
	if config.ClassCount <= 0 {
		config.ClassCount = defaults.ClassCount
	}
	e := &Evaluator{
		config:  config,
		pending: make(map[string]pendingVote),
	}
	e.confusion = make([][]int, config.ClassCount)
	for i := range e.confusion {
		e.confusion[i] = make([]int, config.ClassCount)
	}
	return e
}

// #endregion evaluator

// #region record
// RecordVote registers a fused vote awaiting feedback. An empty turn id is
// ignored; a repeated turn id replaces the earlier vote.
func (e *Evaluator) RecordVote(turnID string, vote, treeLabel int, alarmed bool) {
	if turnID == "" {
		return
	}
	if _, exists := e.pending[turnID]; !exists {
		e.order = append(e.order, turnID)
		if len(e.order) > e.config.PendingCap {
			evicted := e.order[0]
			e.order = e.order[1:]
			delete(e.pending, evicted)
		}
	}
	e.pending[turnID] = pendingVote{vote: vote, treeLabel: treeLabel, alarmed: alarmed}
}

// RecordOutcome pairs ground truth with the pending vote for the turn.
// Returns false when no vote is waiting (unknown id or already evicted).
func (e *Evaluator) RecordOutcome(turnID string, truth int) bool {
	pv, ok := e.pending[turnID]
	if !ok {
		return false
	}
	delete(e.pending, turnID)
	for i, id := range e.order {
		if id == turnID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	remapped := truth
	if remapped == 0 {
		remapped = 1
	}
	e.turns++
	if pv.vote == remapped {
		e.correct++
	}
	if pv.treeLabel >= 0 && pv.treeLabel < e.config.ClassCount &&
		truth >= 0 && truth < e.config.ClassCount {
		e.confusion[pv.treeLabel][truth]++
	}
	if pv.alarmed {
		e.alarmOutcomes++
		if truth == e.config.ClassCount-1 {
			e.alarmHits++
		}
	}
	return true
}

// #endregion record

// #region report
// Report returns a copy of the current bookkeeping.
func (e *Evaluator) Report() Report {
	report := Report{
		Turns:   e.turns,
		Correct: e.correct,
		Pending: len(e.pending),
	}
	if e.turns > 0 {
		report.Accuracy = float64(e.correct) / float64(e.turns)
	}
	if e.alarmOutcomes > 0 {
		report.AlarmPrecision = float64(e.alarmHits) / float64(e.alarmOutcomes)
	}
	report.Confusion = make([][]int, len(e.confusion))
	for i, row := range e.confusion {
		report.Confusion[i] = append([]int(nil), row...)
	}
	return report
}

// Reset clears all bookkeeping.
func (e *Evaluator) Reset() {
	e.pending = make(map[string]pendingVote)
	e.order = nil
	e.turns = 0
	e.correct = 0
	e.alarmOutcomes = 0
	e.alarmHits = 0
	for i := range e.confusion {
		for j := range e.confusion[i] {
			e.confusion[i][j] = 0
		}
	}
}

// #endregion report
