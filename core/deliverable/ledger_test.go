package deliverable

import (
	"context"
	"errors"
	"testing"
)

type pagedReader struct {
	records []EvaluationRecord // oldest first, Seq == index + 1
	calls   int
	failAt  int // fail on this call number, if > 0
}

func (r *pagedReader) ListEvaluations(_ context.Context, _ string, beforeSeq, limit int) ([]EvaluationRecord, error) {
	r.calls++
	if r.failAt > 0 && r.calls == r.failAt {
		return nil, errors.New("db is down")
	}
	end := len(r.records)
	if beforeSeq > 0 && beforeSeq-1 < end {
		end = beforeSeq - 1
	}
	var page []EvaluationRecord
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, r.records[i])
	}
	return page, nil
}

func newPagedReader(n int) *pagedReader {
	r := &pagedReader{}
	for i := 1; i <= n; i++ {
		r.records = append(r.records, EvaluationRecord{Seq: i, Note: float64(i)})
	}
	return r
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		n        int
		pageSize int
		want     []int
	}{
		{name: "empty", n: 0, pageSize: 2, want: []int{}},
		{name: "one page", n: 2, pageSize: 5, want: []int{2, 1}},
		{name: "exact pages", n: 4, pageSize: 2, want: []int{4, 3, 2, 1}},
		{name: "partial last page", n: 5, pageSize: 2, want: []int{5, 4, 3, 2, 1}},
		{name: "default page size", n: 3, pageSize: 0, want: []int{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := History(ctx, newPagedReader(tt.n), "d1", tt.pageSize)
			// restartable: ranging twice yields the same sequence
			for run := 0; run < 2; run++ {
				recs, err := CollectHistory(seq)
				if err != nil {
					t.Fatalf("CollectHistory() unexpected error = %v", err)
				}
				got := make([]int, 0, len(recs))
				for _, r := range recs {
					got = append(got, r.Seq)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("run %d: History() = %v, want %v", run, got, tt.want)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Fatalf("run %d: History() = %v, want %v", run, got, tt.want)
					}
				}
			}
		})
	}
}

func TestHistory_lazy(t *testing.T) {
	r := newPagedReader(10)
	for rec, err := range History(context.Background(), r, "d1", 3) {
		if err != nil {
			t.Fatalf("unexpected error = %v", err)
		}
		if rec.Seq != 10 {
			t.Errorf("first record Seq = %d, want 10", rec.Seq)
		}
		break
	}
	if r.calls != 1 {
		t.Errorf("pages fetched = %d, want 1", r.calls)
	}
}

func TestHistory_error(t *testing.T) {
	r := newPagedReader(5)
	r.failAt = 2
	var seqs []int
	var gotErr error
	for rec, err := range History(context.Background(), r, "d1", 2) {
		if err != nil {
			gotErr = err
			continue
		}
		seqs = append(seqs, rec.Seq)
	}
	if gotErr == nil {
		t.Fatal("History() yielded no error")
	}
	if len(seqs) != 2 {
		t.Errorf("records before the error = %v, want [5 4]", seqs)
	}
	if _, err := CollectHistory(History(context.Background(), &pagedReader{failAt: 1}, "d1", 2)); err == nil {
		t.Error("CollectHistory() error = nil")
	}
}

func TestCurrentEvaluation(t *testing.T) {
	ctx := context.Background()

	cur, err := CurrentEvaluation(ctx, newPagedReader(0), "d1")
	if err != nil || cur != nil {
		t.Errorf("CurrentEvaluation() on an empty ledger = %v, %v; want nil, nil", cur, err)
	}

	r := newPagedReader(3)
	cur, err = CurrentEvaluation(ctx, r, "d1")
	if err != nil {
		t.Fatalf("CurrentEvaluation() unexpected error = %v", err)
	}
	first, _ := CollectHistory(History(ctx, r, "d1", 2))
	if cur == nil || *cur != first[0] {
		t.Errorf("CurrentEvaluation() = %v, want the head of History() %v", cur, first[0])
	}
}
