package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/drift"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/eval"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/metrics"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/spc"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// #region engine
// Engine owns the full decision path of one subject: sample assembly, tree
// training, SPC ingestion, vote fusion, feedback gating, evaluation
// bookkeeping, checkpointing, and provenance. Instances are single-threaded;
// the host serializes calls. The store may be nil (replay harness); all
// persistence is then skipped.
type Engine struct {
	subjectID string
	config    Config

	tree  *tree.Tree
	spc   *spc.Detector
	voter *ensemble.Voter
	gate  *gate.Gate
	eval  *eval.Evaluator

	store *modelstore.Store
	sink  NotificationSink

	samplesSeen     int64
	sinceCheckpoint int
	prevSplits      int
	activeVersion   string

	// currentTurn is set for the duration of one Vote call so the overuse
	// callback can attach the turn id.
	currentTurn string
}

// New builds an engine for the subject and, when a store is attached, resumes
// from the subject's active model version.
func New(subjectID string, config Config, store *modelstore.Store, sink NotificationSink) (*Engine, error) {
	if subjectID == "" {
		return nil, errors.New("engine: empty subject id")
	}
	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = DefaultConfig().CheckpointInterval
	}

	e := &Engine{subjectID: subjectID, config: config, store: store, sink: sink}
	t, d, v, err := buildModels(config, e.onOveruse)
	if err != nil {
		return nil, err
	}
	e.tree, e.spc, e.voter = t, d, v
	e.gate = gate.New(config.Gate)
	e.eval = eval.New(config.Eval)

	if store != nil {
		if _, err := store.EnsureSubject(subjectID, ""); err != nil {
			return nil, err
		}
		if err := e.resume(); err != nil {
			return nil, err
		}
	}

	wTree, wSPC := e.voter.Weights()
	metrics.SetWeights(subjectID, wTree, wSPC)
	return e, nil
}

// buildModels constructs a fresh tree, SPC detector, and voter for the
// configuration.
func buildModels(config Config, notify func(ensemble.VoteResult)) (*tree.Tree, *spc.Detector, *ensemble.Voter, error) {
	detector, err := drift.New(config.DriftStrategy, config.Drift)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("drift detector: %w", err)
	}
	t := tree.New(config.Tree, detector)
	d := spc.New(config.SPC)
	return t, d, ensemble.New(config.Voter, t, d, notify), nil
}

// resume loads the active model version when one exists. A subject that has
// never checkpointed starts fresh.
func (e *Engine) resume() error {
	version, err := e.store.LoadActive(e.subjectID)
	if errors.Is(err, modelstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var state State
	if err := json.Unmarshal([]byte(version.StateJSON), &state); err != nil {
		return fmt.Errorf("decode version %s: %w", version.VersionID, err)
	}
	if err := e.restore(state); err != nil {
		return fmt.Errorf("restore version %s: %w", version.VersionID, err)
	}
	e.activeVersion = version.VersionID
	log.Printf("[ENGINE] resumed subject=%s version=%s instances=%d drift=%d",
		e.subjectID, version.VersionID, version.InstancesSeen, version.DriftCount)
	return nil
}

// restore loads the state into scratch models first; the live models are
// replaced only after every component validated.
func (e *Engine) restore(state State) error {
	if state.SamplesSeen < 0 {
		return fmt.Errorf("%w: negative sample count", ErrBadState)
	}
	t, d, v, err := buildModels(e.config, e.onOveruse)
	if err != nil {
		return err
	}
	if err := t.Load(state.Tree); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	if err := d.Load(state.SPC); err != nil {
		return fmt.Errorf("spc: %w", err)
	}
	if err := v.Load(state.Voter); err != nil {
		return fmt.Errorf("voter: %w", err)
	}

	e.tree, e.spc, e.voter = t, d, v
	e.samplesSeen = state.SamplesSeen
	e.sinceCheckpoint = 0
	e.prevSplits = state.Tree.SplitCount
	return nil
}

// #endregion engine

// #region sample
// HandleSample runs one telemetry sample through the full decision path:
// train the tree on the provisional label, fuse the vote, record it for
// later feedback pairing, log provenance, and checkpoint on cadence or
// drift. Persistence failures are logged, never surfaced; invalid input is
// rejected before anything mutates.
func (e *Engine) HandleSample(s *sample.TelemetrySample, label int) (SampleResult, error) {
	vector, observation, err := sample.Assemble(s)
	if err != nil {
		return SampleResult{}, err
	}
	turnID := s.TurnID
	if turnID == "" {
		turnID = uuid.New().String()
	}

	train, err := e.tree.Train(vector, label, nil)
	if err != nil {
		return SampleResult{}, err
	}

	e.currentTurn = turnID
	vote, err := e.voter.Vote(observation, vector)
	e.currentTurn = ""
	if err != nil {
		return SampleResult{}, err
	}

	e.samplesSeen++
	e.sinceCheckpoint++
	e.eval.RecordVote(turnID, vote.Vote, vote.TreeVote, vote.SPCAlarmed)

	metrics.RecordSample(e.subjectID)
	metrics.RecordVote(e.subjectID, vote.Vote)
	metrics.RecordSplits(e.subjectID, train.SplitCount-e.prevSplits)
	e.prevSplits = train.SplitCount
	if train.Drift {
		metrics.RecordDrift(e.subjectID)
	}
	if vote.SPCAlarmed {
		metrics.RecordAlarm(e.subjectID)
	}

	result := SampleResult{
		TurnID:      turnID,
		Vote:        vote,
		Train:       train,
		SPC:         e.spc.Snapshot(),
		SamplesSeen: e.samplesSeen,
	}

	e.logVote(logging.TriggerSample, e.sampleRecord(turnID, vector, observation, label, vote, train),
		gate.ActionCommit, "")
	e.touch(1)

	if e.store != nil {
		if train.Drift {
			result.Checkpointed, result.VersionID = e.checkpointQuiet(logging.TriggerDrift)
		} else if e.sinceCheckpoint >= e.config.CheckpointInterval {
			result.Checkpointed, result.VersionID = e.checkpointQuiet(logging.TriggerCheckpoint)
		}
	}
	return result, nil
}

// sampleRecord assembles the provenance vote record for one sample turn.
func (e *Engine) sampleRecord(turnID string, vector, observation []float64, label int,
	vote ensemble.VoteResult, train tree.TrainResult) logging.VoteRecord {
	snap := e.spc.Snapshot()
	wTree, wSPC := e.voter.Weights()
	record := logging.VoteRecord{
		TurnID:         turnID,
		Vector:         vector,
		Observation:    observation,
		Label:          label,
		TreeLabel:      vote.TreeVote,
		TreeConfidence: vote.TreeConfidence,
		SPCAlarmed:     vote.SPCAlarmed,
		SPCT2:          vote.SPCT2,
		SPCN:           snap.N,
		SPCUCL:         snap.UCL,
		Vote:           vote.Vote,
		Confidence:     vote.Confidence,
		WeightTree:     wTree,
		WeightSPC:      wSPC,
		Drift:          train.Drift,
		SplitCount:     train.SplitCount,
	}
	if pred, err := e.tree.Predict(vector); err == nil {
		record.TreeDistribution = pred.Distribution
	}
	return record
}

// #endregion sample

// #region feedback
// HandleFeedback screens the correction through the gate, and on commit
// trains the tree, updates the voter's trust bookkeeping, and pairs the
// outcome with the earlier vote. Rejected feedback touches nothing but the
// provenance log.
func (e *Engine) HandleFeedback(fb Feedback) (FeedbackOutcome, error) {
	vector, observation, err := sample.Assemble(&fb.Sample)
	if err != nil {
		return FeedbackOutcome{}, err
	}
	turnID := fb.Sample.TurnID

	decision := e.gate.Evaluate(gate.Feedback{
		Label:      fb.Label,
		Confidence: fb.Confidence,
		Source:     fb.Source,
		ObservedAt: fb.ObservedAt,
	}, time.Now())
	outcome := FeedbackOutcome{TurnID: turnID, Decision: decision}
	metrics.RecordFeedback(e.subjectID, decision.Action)

	if decision.Action == gate.ActionReject {
		e.logVote(logging.TriggerFeedback, logging.VoteRecord{
			TurnID:             turnID,
			Vector:             vector,
			Observation:        observation,
			Label:              fb.Label,
			FeedbackConfidence: fb.Confidence,
		}, decision.Action, decision.Reason)
		return outcome, nil
	}

	// Pre-train view for the provenance record; the voter re-predicts
	// internally for its correctness bookkeeping.
	pred, err := e.tree.Predict(vector)
	if err != nil {
		return FeedbackOutcome{}, err
	}

	result, err := e.voter.HandleFeedback(observation, vector, fb.Label, fb.Confidence, decision.EffectiveWeight)
	if err != nil {
		return FeedbackOutcome{}, err
	}
	outcome.Result = result
	outcome.Paired = e.eval.RecordOutcome(turnID, fb.Label)

	metrics.SetWeights(e.subjectID, result.WeightTree, result.WeightSPC)
	metrics.RecordSplits(e.subjectID, result.Train.SplitCount-e.prevSplits)
	e.prevSplits = result.Train.SplitCount
	if result.Train.Drift {
		metrics.RecordDrift(e.subjectID)
	}

	snap := e.spc.Snapshot()
	e.logVote(logging.TriggerFeedback, logging.VoteRecord{
		TurnID:             turnID,
		Vector:             vector,
		Observation:        observation,
		Label:              fb.Label,
		TreeLabel:          pred.Label,
		TreeConfidence:     pred.Confidence,
		TreeDistribution:   pred.Distribution,
		SPCN:               snap.N,
		SPCUCL:             snap.UCL,
		WeightTree:         result.WeightTree,
		WeightSPC:          result.WeightSPC,
		Drift:              result.Train.Drift,
		SplitCount:         result.Train.SplitCount,
		FeedbackConfidence: fb.Confidence,
		EffectiveWeight:    decision.EffectiveWeight,
	}, decision.Action, decision.Reason)

	if e.store != nil && result.Train.Drift {
		outcome.Checkpointed, outcome.VersionID = e.checkpointQuiet(logging.TriggerDrift)
	}
	return outcome, nil
}

// #endregion feedback

// #region probes
// Predict is the side-effect-free probe: assembly plus tree prediction. No
// moment updates, no training, no provenance.
func (e *Engine) Predict(s *sample.TelemetrySample) (tree.Prediction, error) {
	vector, _, err := sample.Assemble(s)
	if err != nil {
		return tree.Prediction{}, err
	}
	return e.tree.Predict(vector)
}

// SPCSnapshot returns the SPC display surface.
func (e *Engine) SPCSnapshot() spc.Snapshot {
	return e.spc.Snapshot()
}

// SubjectID returns the owning subject.
func (e *Engine) SubjectID() string { return e.subjectID }

// ActiveVersion returns id of the last persisted version, if any.
func (e *Engine) ActiveVersion() string { return e.activeVersion }

// Status returns the inspection surface.
func (e *Engine) Status() Status {
	wTree, wSPC := e.voter.Weights()
	return Status{
		SubjectID:     e.subjectID,
		SamplesSeen:   e.samplesSeen,
		FeedbackSeen:  e.voter.FeedbackSeen(),
		WeightTree:    wTree,
		WeightSPC:     wSPC,
		NodeCount:     e.tree.NodeCount(),
		Depth:         e.tree.Depth(),
		SplitCount:    e.tree.SplitCount(),
		DriftCount:    e.tree.DriftCount(),
		InstancesSeen: e.tree.InstancesSeen(),
		SPC:           e.spc.Snapshot(),
		Eval:          e.eval.Report(),
		ActiveVersion: e.activeVersion,
	}
}

// #endregion probes

// #region state
// ExportState captures the full engine state.
func (e *Engine) ExportState() State {
	return State{
		Tree:        e.tree.Export(),
		SPC:         e.spc.Export(),
		Voter:       e.voter.Export(),
		SamplesSeen: e.samplesSeen,
	}
}

// ImportState replaces the live models with a validated external state. The
// evaluator resets: its pending votes refer to models that no longer exist.
// With a store attached, the import is checkpointed immediately.
func (e *Engine) ImportState(state State) error {
	if err := e.restore(state); err != nil {
		return err
	}
	e.eval.Reset()
	log.Printf("[ENGINE] imported state subject=%s instances=%d splits=%d",
		e.subjectID, state.Tree.InstancesSeen, state.Tree.SplitCount)

	if e.store != nil {
		if _, err := e.Checkpoint(logging.TriggerImport); err != nil {
			return fmt.Errorf("import checkpoint: %w", err)
		}
	}
	return nil
}

// Checkpoint persists the full engine state as a new version and moves the
// subject's active pointer to it.
func (e *Engine) Checkpoint(trigger string) (modelstore.ModelVersion, error) {
	if e.store == nil {
		return modelstore.ModelVersion{}, ErrNoStore
	}

	data, err := json.Marshal(e.ExportState())
	if err != nil {
		return modelstore.ModelVersion{}, fmt.Errorf("encode state: %w", err)
	}
	version, err := e.store.SaveVersion(modelstore.ModelVersion{
		SubjectID:     e.subjectID,
		ParentID:      e.activeVersion,
		TriggerType:   trigger,
		StateJSON:     string(data),
		NodeCount:     e.tree.NodeCount(),
		InstancesSeen: e.tree.InstancesSeen(),
		DriftCount:    int64(e.tree.DriftCount()),
	})
	if err != nil {
		return modelstore.ModelVersion{}, err
	}
	e.activeVersion = version.VersionID
	e.sinceCheckpoint = 0

	if err := e.store.LogProvenance(logging.ProvenanceEntry{
		SubjectID:   e.subjectID,
		VersionID:   version.VersionID,
		TriggerType: trigger,
		Decision:    gate.ActionCommit,
		Reason:      fmt.Sprintf("state persisted: %d nodes, %d instances", version.NodeCount, version.InstancesSeen),
	}); err != nil {
		log.Printf("[ENGINE] checkpoint provenance subject=%s: %v", e.subjectID, err)
	}
	return version, nil
}

// #endregion state

// #region internals
// onOveruse bridges the voter's synchronous callback to the notification
// sink.
func (e *Engine) onOveruse(vote ensemble.VoteResult) {
	log.Printf("[ENGINE] overuse vote subject=%s turn=%s confidence=%.3f alarmed=%v",
		e.subjectID, e.currentTurn, vote.Confidence, vote.SPCAlarmed)
	if e.sink == nil {
		return
	}
	e.sink(Notification{
		SubjectID:  e.subjectID,
		TurnID:     e.currentTurn,
		Vote:       vote.Vote,
		Confidence: vote.Confidence,
		SPCAlarmed: vote.SPCAlarmed,
		CreatedAt:  time.Now().UTC(),
	})
}

// checkpointQuiet runs a checkpoint on the streaming path, where persistence
// failures are logged rather than surfaced.
func (e *Engine) checkpointQuiet(trigger string) (bool, string) {
	version, err := e.Checkpoint(trigger)
	if err != nil {
		log.Printf("[ENGINE] %s checkpoint subject=%s: %v", trigger, e.subjectID, err)
		return false, ""
	}
	return true, version.VersionID
}

// logVote writes one provenance row; failures never interrupt the stream.
func (e *Engine) logVote(trigger string, record logging.VoteRecord, decision, reason string) {
	if e.store == nil {
		return
	}
	voteJSON, err := record.Encode()
	if err != nil {
		log.Printf("[ENGINE] encode vote record subject=%s: %v", e.subjectID, err)
		return
	}
	if err := e.store.LogProvenance(logging.ProvenanceEntry{
		SubjectID:   e.subjectID,
		VersionID:   e.activeVersion,
		TurnID:      record.TurnID,
		TriggerType: trigger,
		VoteJSON:    voteJSON,
		Decision:    decision,
		Reason:      reason,
	}); err != nil {
		log.Printf("[ENGINE] provenance write subject=%s: %v", e.subjectID, err)
	}
}

func (e *Engine) touch(samples int64) {
	if e.store == nil {
		return
	}
	if err := e.store.TouchSubject(e.subjectID, samples); err != nil {
		log.Printf("[ENGINE] touch subject=%s: %v", e.subjectID, err)
	}
}

// #endregion internals
