package deliverable

import (
	"context"
	"iter"

	"github.com/pkg/errors"
)

const defaultHistoryPageSize = 20

// EvaluationReader reads the evaluation ledger, newest first.
type EvaluationReader interface {
	// ListEvaluations returns at most limit records of the deliverable with Seq < beforeSeq,
	// newest first. beforeSeq <= 0 starts from the newest record.
	ListEvaluations(ctx context.Context, deliverableID string, beforeSeq, limit int) ([]EvaluationRecord, error)
}

// History returns the evaluation ledger of a deliverable, newest to oldest.
// Records are fetched lazily, page by page; the sequence may be ranged over any number of times.
// A read failure is yielded once as the last element.
func History(ctx context.Context, repo EvaluationReader, deliverableID string, pageSize int) iter.Seq2[EvaluationRecord, error] {
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	return func(yield func(EvaluationRecord, error) bool) {
		before := 0
		for {
			page, err := repo.ListEvaluations(ctx, deliverableID, before, pageSize)
			if err != nil {
				yield(EvaluationRecord{}, errors.Wrap(err, "listing evaluations"))
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			before = page[len(page)-1].Seq
		}
	}
}

// CurrentEvaluation returns the newest EvaluationRecord of a deliverable, or nil when it has none.
func CurrentEvaluation(ctx context.Context, repo EvaluationReader, deliverableID string) (*EvaluationRecord, error) {
	for rec, err := range History(ctx, repo, deliverableID, 1) {
		if err != nil {
			return nil, err
		}
		return &rec, nil
	}
	return nil, nil
}

// CollectHistory drains a History sequence.
func CollectHistory(seq iter.Seq2[EvaluationRecord, error]) ([]EvaluationRecord, error) {
	records := make([]EvaluationRecord, 0)
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
