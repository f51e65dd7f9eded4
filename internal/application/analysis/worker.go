package analysis

import (
	"context"
	"net/http"

	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// NewRequestHandler returns the consumer callback for analysis requests.
// Each message names a stored document; the report is archived and
// announced by the service like any other run.
func NewRequestHandler(svc Service, defaults coherence.Options, logger logging.Logger) common.MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("worker")

	return func(ctx context.Context, msg *common.Message) error {
		env, err := kafka.MessageToEnvelope(msg, kafka.EventAnalysisRequested)
		if err != nil {
			return err
		}
		var p kafka.AnalysisRequestedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}

		opts := defaults
		if p.MinTopics > 0 {
			opts.MinTopics = p.MinTopics
		}
		res, err := svc.Analyze(ctx, &Request{Object: p.Object, Options: opts, LocalPositions: p.Local})
		if err != nil {
			logger.Warn("analysis request failed",
				logging.String("request_id", p.RequestID),
				logging.String("object", p.Object),
				logging.Err(err))
			return err
		}
		logger.Info("analysis request served",
			logging.String("request_id", p.RequestID),
			logging.String("run_id", res.Report.RunID),
			logging.String("archive_key", res.ArchiveKey))
		return nil
	}
}

// Retryable reports whether a failed request may succeed on another
// attempt.  Undecodable messages and errors that map to a 4xx status are
// permanent.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		if ae.Code == errors.ErrCodeSerialization {
			return false
		}
		return ae.Code.HTTPStatus() >= http.StatusInternalServerError
	}
	return true
}
