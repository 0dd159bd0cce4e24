package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/middleware"
	"github.com/charlesng35/sqlpulse/internal/pipeline"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
	"github.com/charlesng35/sqlpulse/pkg/response"
)

// PipelineRunner executes named pipeline invocations, in the foreground with
// Run or in the background with Start.
type PipelineRunner interface {
	Run(ctx context.Context, name string) (pipeline.Result, error)
	Start(ctx context.Context, name string) error
}

// RunHandler triggers pipeline invocations on demand.
type RunHandler struct {
	runner PipelineRunner
	log    *zap.Logger
}

// NewRunHandler constructs a RunHandler.
func NewRunHandler(runner PipelineRunner) (*RunHandler, error) {
	if runner == nil {
		return nil, errors.New("run handler: runner is required")
	}
	return &RunHandler{
		runner: runner,
		log:    logger.WithModule("http"),
	}, nil
}

// Trigger runs the pipeline named by the :pipeline parameter. With ?async=true
// the run is started in the background and 202 is returned immediately;
// otherwise the response carries the run result. A client that disconnects
// does not abort the run. 409 is returned while the pipeline is running and
// 403 when the caller's token is scoped to other pipelines.
func (h *RunHandler) Trigger(c *gin.Context) {
	name := c.Param("pipeline")
	if name != pipeline.Load && name != pipeline.Report {
		response.Failure(c, apperrors.ErrNotFound, gin.H{"pipeline": name})
		return
	}

	if claims, ok := middleware.ClaimsFrom(c); ok && !claims.Allows(name) {
		response.Failure(c, apperrors.ErrForbidden, gin.H{"pipeline": name})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	h.log.Info("run triggered", zap.String("pipeline", name), zap.String("subject", c.GetString(middleware.CtxSubjectKey)))

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if err := h.runner.Start(ctx, name); err != nil {
			h.fail(c, name, pipeline.Result{Pipeline: name}, err)
			return
		}
		response.Success(c, http.StatusAccepted, gin.H{"pipeline": name, "status": "started"})
		return
	}

	result, err := h.runner.Run(ctx, name)
	if err != nil {
		h.fail(c, name, result, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *RunHandler) fail(c *gin.Context, name string, result pipeline.Result, err error) {
	if errors.Is(err, pipeline.ErrPipelineBusy) {
		response.Failure(c, apperrors.ErrConflict, gin.H{"pipeline": name})
		return
	}
	response.Failure(c, err, result)
}
