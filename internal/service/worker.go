package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/queue"
	"github.com/unclebandit/campaign-portal/internal/repository"
)

// EnrichmentTopic carries EnrichmentJob payloads.
const EnrichmentTopic = "prospect_enrichment"

// EnrichmentJob asks the worker to enrich one execution's audience list.
type EnrichmentJob struct {
	ExecutionID string `json:"execution_id"`
	AccountID   string `json:"account_id"`
}

// EnrichmentWorker processes enrichment jobs off the queue
type EnrichmentWorker struct {
	Prospects repository.ProspectRepositoryInterface
	Enricher  Enricher
	Logger    *slog.Logger
	// Timeout bounds one job. Each lookup has its own shorter deadline.
	Timeout time.Duration
}

// Handle is a queue handler. Returning an error makes the queue retry the
// job, so only failures worth retrying are returned.
func (w *EnrichmentWorker) Handle(payload any) error {
	job, err := decodeEnrichmentJob(payload)
	if err != nil {
		w.log().Error("dropping malformed enrichment job", slog.String("error", err.Error()))
		return nil
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := enrichList(ctx, w.Prospects, w.Enricher, w.log(), job.ExecutionID)
	if err != nil {
		return err
	}
	w.log().Info("enrichment job finished",
		slog.String("execution_id", job.ExecutionID),
		slog.Int("enriched", report.Enriched),
		slog.Int("failed", report.Failed),
	)
	return nil
}

// Start subscribes the worker to the enrichment topic.
func (w *EnrichmentWorker) Start(q queue.Queue) error {
	return q.Subscribe(EnrichmentTopic, w.Handle)
}

func (w *EnrichmentWorker) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func decodeEnrichmentJob(payload any) (EnrichmentJob, error) {
	var job EnrichmentJob
	switch v := payload.(type) {
	case EnrichmentJob:
		job = v
	case *EnrichmentJob:
		job = *v
	case json.RawMessage:
		if err := json.Unmarshal(v, &job); err != nil {
			return job, err
		}
	case []byte:
		if err := json.Unmarshal(v, &job); err != nil {
			return job, err
		}
	default:
		return job, fmt.Errorf("unexpected payload type %T", payload)
	}
	if job.ExecutionID == "" {
		return job, fmt.Errorf("job has no execution id")
	}
	return job, nil
}

// enrichList runs the enricher over every prospect and stores each result.
// A failed lookup or save is counted and the batch carries on.
func enrichList(ctx context.Context, prospects repository.ProspectRepositoryInterface, enricher Enricher, logger *slog.Logger, executionID string) (*EnrichmentReport, error) {
	list, err := prospects.ListByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	report := &EnrichmentReport{Total: len(list), Prospects: []*model.Prospect{}}
	for _, res := range enricher.EnrichBatch(ctx, list) {
		report.Degradations = append(report.Degradations, res.Degradations...)
		if len(res.Degradations) > 0 {
			report.Failed++
		}
		if err := prospects.SaveEnrichment(ctx, res.Prospect); err != nil {
			logger.Error("failed to store enrichment",
				slog.Int("prospect_id", res.Prospect.ID),
				slog.String("error", err.Error()),
			)
			report.Failed++
			continue
		}
		if res.Prospect.Email != nil || res.Prospect.MobileNumber != nil {
			report.Enriched++
		}
		report.Prospects = append(report.Prospects, res.Prospect)
	}
	return report, nil
}
