package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/metrics"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/spc"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// Handlers carries the daemon's request handlers.
type Handlers struct {
	registry *Registry
	store    *modelstore.Store
}

// NewHandlers creates handlers over the registry and store.
func NewHandlers(registry *Registry, store *modelstore.Store) *Handlers {
	return &Handlers{registry: registry, store: store}
}

// #region ingest
// HandleSample handles POST /v1/subjects/:subject/samples. Over-cadence
// samples are dropped before they reach the engine (429).
func (h *Handlers) HandleSample(c *gin.Context) {
	subject := c.Param("subject")

	var req SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
		return
	}

	allowed, err := h.registry.Allow(subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !allowed {
		metrics.RecordRateLimited(subject)
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "sample rate exceeded", Code: CodeRateLimited})
		return
	}

	var result engine.SampleResult
	err = h.registry.Do(subject, func(e *engine.Engine) error {
		var err error
		result, err = e.HandleSample(&req.TelemetrySample, req.Label)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleFeedback handles POST /v1/subjects/:subject/feedback. A gate
// rejection is 422; the reason names the veto.
func (h *Handlers) HandleFeedback(c *gin.Context) {
	subject := c.Param("subject")

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
		return
	}

	var outcome engine.FeedbackOutcome
	err := h.registry.Do(subject, func(e *engine.Engine) error {
		var err error
		outcome, err = e.HandleFeedback(engine.Feedback{
			Sample:     req.TelemetrySample,
			Label:      req.Label,
			Confidence: req.Confidence,
			Source:     req.Source,
			ObservedAt: req.ObservedAt,
		})
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome.Decision.Action == gate.ActionReject {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: outcome.Decision.Reason,
			Code:  CodeFeedbackRejected,
		})
		return
	}
	c.JSON(http.StatusOK, feedbackResponse(outcome))
}

// #endregion ingest

// #region probes
// HandlePredict handles POST /v1/subjects/:subject/predict. Pure probe, no
// mutation.
func (h *Handlers) HandlePredict(c *gin.Context) {
	subject := c.Param("subject")

	var req sample.TelemetrySample
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
		return
	}

	var pred tree.Prediction
	err := h.registry.Do(subject, func(e *engine.Engine) error {
		var err error
		pred, err = e.Predict(&req)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

// HandleSPC handles GET /v1/subjects/:subject/spc.
func (h *Handlers) HandleSPC(c *gin.Context) {
	var snapshot spc.Snapshot
	err := h.registry.Do(c.Param("subject"), func(e *engine.Engine) error {
		snapshot = e.SPCSnapshot()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// HandleStatus handles GET /v1/subjects/:subject/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	var status engine.Status
	err := h.registry.Do(c.Param("subject"), func(e *engine.Engine) error {
		status = e.Status()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// #endregion probes

// #region model
// HandleExportModel handles GET /v1/subjects/:subject/model.
func (h *Handlers) HandleExportModel(c *gin.Context) {
	var state engine.State
	err := h.registry.Do(c.Param("subject"), func(e *engine.Engine) error {
		state = e.ExportState()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// HandleImportModel handles PUT /v1/subjects/:subject/model.
func (h *Handlers) HandleImportModel(c *gin.Context) {
	var state engine.State
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
		return
	}

	var status engine.Status
	err := h.registry.Do(c.Param("subject"), func(e *engine.Engine) error {
		if err := e.ImportState(state); err != nil {
			return err
		}
		status = e.Status()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleCheckpoint handles POST /v1/subjects/:subject/checkpoint.
func (h *Handlers) HandleCheckpoint(c *gin.Context) {
	var version modelstore.ModelVersion
	err := h.registry.Do(c.Param("subject"), func(e *engine.Engine) error {
		var err error
		version, err = e.Checkpoint(logging.TriggerCheckpoint)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	version.StateJSON = "" // payload available via the model export
	c.JSON(http.StatusOK, version)
}

// HandleVersions handles GET /v1/subjects/:subject/versions.
func (h *Handlers) HandleVersions(c *gin.Context) {
	subject := c.Param("subject")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: CodeInvalidInput})
		return
	}

	if _, err := h.store.GetSubject(subject); err != nil {
		h.fail(c, err)
		return
	}
	versions, err := h.store.ListVersions(subject, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// #endregion model

// #region errors
// fail maps an engine or store error onto the HTTP surface.
func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := mapError(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// mapError translates sentinel errors into status plus error code. Unknown
// errors are treated as persistence failures.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, tree.ErrLabelRange):
		return http.StatusBadRequest, CodeLabelRange
	case errors.Is(err, tree.ErrVectorLength), errors.Is(err, spc.ErrObservationLength):
		return http.StatusBadRequest, CodeVectorLength
	case errors.Is(err, sample.ErrBadSample),
		errors.Is(err, tree.ErrFeedbackRange),
		errors.Is(err, tree.ErrBadModel),
		errors.Is(err, spc.ErrBadState),
		errors.Is(err, ensemble.ErrBadState),
		errors.Is(err, engine.ErrBadState):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, modelstore.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeStoreFailure
	}
}

func feedbackResponse(outcome engine.FeedbackOutcome) FeedbackResponse {
	return FeedbackResponse{
		TurnID:          outcome.TurnID,
		Action:          outcome.Decision.Action,
		Reason:          outcome.Decision.Reason,
		TrustScore:      outcome.Decision.TrustScore,
		EffectiveWeight: outcome.Decision.EffectiveWeight,
		Paired:          outcome.Paired,
		TreeCorrect:     outcome.Result.TreeCorrect,
		SPCCorrect:      outcome.Result.SPCCorrect,
		Reweighted:      outcome.Result.Reweighted,
		WeightTree:      outcome.Result.WeightTree,
		WeightSPC:       outcome.Result.WeightSPC,
		Drift:           outcome.Result.Train.Drift,
	}
}

// #endregion errors
