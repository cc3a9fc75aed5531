package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	deliverableColumns = []string{
		"id", "project_id", "group_id", "name", "description", "due_at", "status",
		"file_name", "file_size", "file_media_type", "file_kind", "file_ref", "file_uploaded_at",
		"submitted_at", "submitted_by", "note", "comment", "version", "created_at", "updated_at",
	}
	evaluationColumns = []string{"deliverable_id", "seq", "note", "comment", "evaluator_id", "created_at"}

	// orderable fields, from the API names to the columns
	orderingColumns = map[string]string{
		"name":       "name",
		"status":     "status",
		"due_at":     "due_at",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
)

type deliverableRow struct {
	ID             string             `db:"id"`
	ProjectID      string             `db:"project_id"`
	GroupID        string             `db:"group_id"`
	Name           string             `db:"name"`
	Description    string             `db:"description"`
	DueAt          time.Time          `db:"due_at"`
	Status         deliverable.Status `db:"status"`
	FileName       null.String        `db:"file_name"`
	FileSize       null.Int64         `db:"file_size"`
	FileMediaType  null.String        `db:"file_media_type"`
	FileKind       null.String        `db:"file_kind"`
	FileRef        null.String        `db:"file_ref"`
	FileUploadedAt null.Time          `db:"file_uploaded_at"`
	SubmittedAt    null.Time          `db:"submitted_at"`
	SubmittedBy    null.String        `db:"submitted_by"`
	Note           null.Float64       `db:"note"`
	Comment        null.String        `db:"comment"`
	Version        int64              `db:"version"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
}

func toRow(d deliverable.Deliverable) deliverableRow {
	row := deliverableRow{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		GroupID:     d.GroupID,
		Name:        d.Name,
		Description: d.Description,
		DueAt:       d.DueAt.UTC(),
		Status:      d.Status,
		SubmittedAt: null.TimeFromPtr(d.SubmittedAt),
		SubmittedBy: null.NewString(d.SubmittedBy, d.SubmittedBy != ""),
		Note:        null.Float64FromPtr(d.Note),
		Comment:     null.StringFromPtr(d.Comment),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if f := d.File; f != nil {
		row.FileName = null.StringFrom(f.Filename)
		row.FileSize = null.Int64From(f.Size)
		row.FileMediaType = null.StringFrom(f.MediaType)
		row.FileKind = null.StringFrom(string(f.Kind))
		row.FileRef = null.StringFrom(f.StorageRef)
		row.FileUploadedAt = null.TimeFrom(f.UploadedAt.UTC())
	}
	return row
}

func (row deliverableRow) toDeliverable() deliverable.Deliverable {
	d := deliverable.Deliverable{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		GroupID:     row.GroupID,
		Name:        row.Name,
		Description: row.Description,
		DueAt:       row.DueAt.UTC(),
		Status:      row.Status,
		SubmittedAt: row.SubmittedAt.Ptr(),
		SubmittedBy: row.SubmittedBy.String,
		Note:        row.Note.Ptr(),
		Comment:     row.Comment.Ptr(),
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if d.SubmittedAt != nil {
		at := d.SubmittedAt.UTC()
		d.SubmittedAt = &at
	}
	if row.FileRef.Valid {
		d.File = &deliverable.SubmittedFile{
			Filename:   row.FileName.String,
			Size:       row.FileSize.Int64,
			MediaType:  row.FileMediaType.String,
			Kind:       deliverable.FileKind(row.FileKind.String),
			UploadedAt: row.FileUploadedAt.Time.UTC(),
			StorageRef: row.FileRef.String,
		}
	}
	return d
}

type evaluationRow struct {
	DeliverableID string    `db:"deliverable_id"`
	Seq           int       `db:"seq"`
	Note          float64   `db:"note"`
	Comment       string    `db:"comment"`
	EvaluatorID   string    `db:"evaluator_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// txBeginner is a core.DBExecutor able to open transactions, such as *sqlx.DB.
type txBeginner interface {
	core.DBExecutor
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type deliverableRepository struct {
	db txBeginner
}

var _ deliverable.Repository = (*deliverableRepository)(nil) // interface compliance check

func NewDeliverableRepository(db *sqlx.DB) *deliverableRepository {
	return &deliverableRepository{db: db}
}

func (repo *deliverableRepository) CreateDeliverable(ctx context.Context, d deliverable.Deliverable) (deliverable.Deliverable, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	row := toRow(d)
	query, args, err := psql.Insert("deliverables").
		Columns(deliverableColumns...).
		Values(
			row.ID, row.ProjectID, row.GroupID, row.Name, row.Description, row.DueAt, row.Status,
			row.FileName, row.FileSize, row.FileMediaType, row.FileKind, row.FileRef, row.FileUploadedAt,
			row.SubmittedAt, row.SubmittedBy, row.Note, row.Comment, row.Version, row.CreatedAt, row.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "building insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "inserting deliverable")
	}
	return row.toDeliverable(), nil
}

func (repo *deliverableRepository) GetDeliverable(ctx context.Context, id string) (deliverable.Deliverable, error) {
	if _, err := uuid.Parse(id); err != nil {
		return deliverable.Deliverable{}, deliverable.ErrNotFound
	}
	query, args, err := psql.Select(deliverableColumns...).From("deliverables").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "building select")
	}
	var row deliverableRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deliverable.Deliverable{}, deliverable.ErrNotFound
		}
		return deliverable.Deliverable{}, errors.Wrap(err, "selecting deliverable")
	}
	return row.toDeliverable(), nil
}

// filterQuery builds the SELECT matching filter; unknown ordering fields are ignored.
func filterQuery(filter deliverable.QueryFilter, ordering ...core.DBOrdering) sq.SelectBuilder {
	q := psql.Select(deliverableColumns...).From("deliverables")
	if filter.ProjectID != "" {
		q = q.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if filter.GroupID != "" {
		q = q.Where(sq.Eq{"group_id": filter.GroupID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, st.String())
		}
		q = q.Where(sq.Eq{"status": statuses})
	}
	if !filter.DueBefore.IsZero() {
		q = q.Where(sq.Lt{"due_at": filter.DueBefore.UTC()})
	}
	if filter.LateOnly {
		now := filter.Now.UTC()
		q = q.Where(sq.Or{
			sq.And{sq.Eq{"status": deliverable.StatusToSubmit.String()}, sq.Lt{"due_at": now}},
			sq.And{sq.Eq{"status": deliverable.StatusSubmitted.String()}, sq.Expr("COALESCE(submitted_at, ?) > due_at", now)},
		})
	}

	orderBys := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderingColumns[ord.Field]; ok {
			orderBys = append(orderBys, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderBys) == 0 {
		orderBys = append(orderBys, "due_at ASC")
	}
	return q.OrderBy(append(orderBys, "id ASC")...)
}

func (repo *deliverableRepository) QueryDeliverables(ctx context.Context, filter deliverable.QueryFilter, ordering ...core.DBOrdering) ([]deliverable.Deliverable, error) {
	query, args, err := filterQuery(filter, ordering...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select")
	}
	var rows []deliverableRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting deliverables")
	}
	ds := make([]deliverable.Deliverable, 0, len(rows))
	for _, row := range rows {
		ds = append(ds, row.toDeliverable())
	}
	return ds, nil
}

func (repo *deliverableRepository) SaveTransition(ctx context.Context, d deliverable.Deliverable, rec *deliverable.EvaluationRecord) (saved deliverable.Deliverable, err error) {
	if _, err = uuid.Parse(d.ID); err != nil {
		return deliverable.Deliverable{}, deliverable.ErrNotFound
	}

	var tx core.DBTransactor
	tx, err = repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := toRow(d)
	query, args, err := psql.Update("deliverables").
		SetMap(map[string]interface{}{
			"status":           row.Status,
			"file_name":        row.FileName,
			"file_size":        row.FileSize,
			"file_media_type":  row.FileMediaType,
			"file_kind":        row.FileKind,
			"file_ref":         row.FileRef,
			"file_uploaded_at": row.FileUploadedAt,
			"submitted_at":     row.SubmittedAt,
			"submitted_by":     row.SubmittedBy,
			"note":             row.Note,
			"comment":          row.Comment,
			"updated_at":       row.UpdatedAt,
			"version":          sq.Expr("version + 1"),
		}).
		Where(sq.Eq{"id": row.ID, "version": row.Version}).
		ToSql()
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "building update")
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "updating deliverable")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "counting updated rows")
	}
	if n == 0 {
		var exists bool
		if err = tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM deliverables WHERE id = $1)", row.ID); err != nil {
			return deliverable.Deliverable{}, errors.Wrap(err, "checking deliverable")
		}
		if !exists {
			err = deliverable.ErrNotFound
		} else {
			err = deliverable.ErrVersionConflict
		}
		return deliverable.Deliverable{}, err
	}

	if rec != nil {
		// the deliverable row is locked by the update above: seq cannot be taken twice
		var seq int
		err = tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM evaluation_records WHERE deliverable_id = $1", row.ID)
		if err != nil {
			return deliverable.Deliverable{}, errors.Wrap(err, "computing evaluation seq")
		}
		rec.DeliverableID = row.ID
		rec.Seq = seq
		query, args, err = psql.Insert("evaluation_records").
			Columns(evaluationColumns...).
			Values(rec.DeliverableID, rec.Seq, rec.Note, rec.Comment, rec.EvaluatorID, rec.CreatedAt.UTC()).
			ToSql()
		if err != nil {
			return deliverable.Deliverable{}, errors.Wrap(err, "building insert")
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return deliverable.Deliverable{}, errors.Wrap(err, "inserting evaluation record")
		}
	}

	if err = tx.Commit(); err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "committing transition")
	}
	d.Version++
	return d, nil
}

func (repo *deliverableRepository) ListEvaluations(ctx context.Context, deliverableID string, beforeSeq, limit int) ([]deliverable.EvaluationRecord, error) {
	if limit <= 0 {
		return []deliverable.EvaluationRecord{}, nil
	}
	if _, err := uuid.Parse(deliverableID); err != nil {
		return []deliverable.EvaluationRecord{}, nil
	}
	q := psql.Select(evaluationColumns...).
		From("evaluation_records").
		Where(sq.Eq{"deliverable_id": deliverableID}).
		OrderBy("seq DESC").
		Limit(uint64(limit))
	if beforeSeq > 0 {
		q = q.Where(sq.Lt{"seq": beforeSeq})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select")
	}

	var rows []evaluationRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting evaluation records")
	}
	records := make([]deliverable.EvaluationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, deliverable.EvaluationRecord{
			DeliverableID: row.DeliverableID,
			Seq:           row.Seq,
			Note:          row.Note,
			Comment:       row.Comment,
			EvaluatorID:   row.EvaluatorID,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return records, nil
}
