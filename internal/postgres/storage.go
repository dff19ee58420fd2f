package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
)

const uniqueViolationCode = "23505"

type storage struct {
	pool *pgxpool.Pool
}

func NewStorage(ctx context.Context, dsn string) (*storage, error) {
	var pool *pgxpool.Pool
	var err error

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	err = backoff.Retry(func() error {
		if pool, err = pgxpool.ConnectConfig(ctx, config); err != nil {
			slog.ErrorContext(ctx, "failed to connect to postgres database.. retrying...", "error", err)
			return err
		}

		if err = pool.Ping(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to ping postgres database connection.. retrying...", "error", err)
			return err
		}

		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(3*time.Second), 5))

	if err != nil {
		return nil, err
	}

	return &storage{pool: pool}, nil
}

func (s *storage) Ping(ctx context.Context) (err error) {
	return s.pool.Ping(ctx)
}

const taskColumns = `id, stage_type, vendor, status, batch_no, external_id, error, created_at, updated_at`

func (s *storage) InsertTask(ctx context.Context, stageType string, vendor domain.Vendor, batchNo *int32) (*domain.DialerTask, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var task domain.DialerTask
	row := tx.QueryRow(ctx,
		`INSERT INTO dialer_tasks (stage_type, vendor, status, batch_no)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+taskColumns,
		stageType, string(vendor), string(domain.Initiated), batchNoValue(batchNo))
	if err = scanTask(row, &task); err != nil {
		rollback(ctx, tx)
		if isUniqueViolation(err) {
			return nil, &errval.IntegrityError{
				Reason: "duplicate dialer task for stage type " + stageType + " within the creation window",
				Err:    err,
			}
		}
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO dialer_task_events (task_id, status) VALUES ($1, $2)`,
		task.ID, string(domain.Initiated))
	if err != nil {
		rollback(ctx, tx)
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &task, nil
}

func (s *storage) GetTaskByID(ctx context.Context, id int64) (*domain.DialerTask, error) {
	var task domain.DialerTask
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM dialer_tasks WHERE id = $1`, id)
	if err := scanTask(row, &task); err != nil {
		return nil, notFoundOr(err)
	}

	return &task, nil
}

func (s *storage) GetLatestTask(ctx context.Context, stageType string) (*domain.DialerTask, error) {
	var task domain.DialerTask
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM dialer_tasks
		 WHERE stage_type = $1 ORDER BY id DESC LIMIT 1`, stageType)
	if err := scanTask(row, &task); err != nil {
		return nil, notFoundOr(err)
	}

	return &task, nil
}

func (s *storage) GetLatestBatchTask(ctx context.Context, stageType string, batchNo int32) (*domain.DialerTask, error) {
	var task domain.DialerTask
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM dialer_tasks
		 WHERE stage_type = $1 AND batch_no = $2 ORDER BY id DESC LIMIT 1`,
		stageType, batchNo)
	if err := scanTask(row, &task); err != nil {
		return nil, notFoundOr(err)
	}

	return &task, nil
}

func (s *storage) GetTasksByStatus(ctx context.Context, stageType string, status domain.TaskStatus) ([]*domain.DialerTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM dialer_tasks
		 WHERE stage_type = $1 AND status = $2 ORDER BY id`,
		stageType, string(status))
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, errval.ErrNotFound
	}

	return tasks, nil
}

// GetStuckTasks returns non-terminal tasks whose last update is older than
// passedSeconds. The recovery process re-enqueues them.
func (s *storage) GetStuckTasks(ctx context.Context, passedSeconds, limit int32) ([]*domain.DialerTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM dialer_tasks
		 WHERE status NOT IN ($1, $2, $3, $4)
		   AND updated_at < now() - make_interval(secs => $5)
		 ORDER BY id LIMIT $6`,
		string(domain.Success), string(domain.Failure),
		string(domain.Stored), string(domain.PartialStored),
		passedSeconds, limit)
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, errval.ErrNotFound
	}

	return tasks, nil
}

func (s *storage) GetTaskEvents(ctx context.Context, taskID int64) ([]*domain.DialerTaskEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, status, data_count, error, created_at
		 FROM dialer_task_events WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	events := []*domain.DialerTaskEvent{}
	for rows.Next() {
		var event domain.DialerTaskEvent
		var dataCount pgtype.Int4
		var taskErr pgtype.Text
		if err = rows.Scan(&event.ID, &event.TaskID, &event.Status, &dataCount, &taskErr, &event.CreatedAt); err != nil {
			return nil, err
		}
		if dataCount.Status == pgtype.Present {
			event.DataCount = &dataCount.Int
		}
		if taskErr.Status == pgtype.Present {
			event.Error = &taskErr.String
		}
		events = append(events, &event)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errval.ErrNotFound
	}

	return events, nil
}

func (s *storage) TransitionTask(ctx context.Context, taskID int64, newStatus domain.TaskStatus, dataCount *int32, taskErr *string, externalID *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE dialer_tasks
		 SET status = $2,
		     external_id = COALESCE($3, external_id),
		     error = COALESCE($4, error),
		     updated_at = now()
		 WHERE id = $1`,
		taskID, string(newStatus), textValue(externalID), textValue(taskErr))
	if err != nil {
		rollback(ctx, tx)
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO dialer_task_events (task_id, status, data_count, error)
		 VALUES ($1, $2, $3, $4)`,
		taskID, string(newStatus), int4Value(dataCount), textValue(taskErr))
	if err != nil {
		rollback(ctx, tx)
		return err
	}

	return tx.Commit(ctx)
}

func (s *storage) GetCampaignConfiguration(ctx context.Context, bucket domain.BucketName) (*domain.CampaignConfiguration, error) {
	var cfg domain.CampaignConfiguration
	err := s.pool.QueryRow(ctx,
		`SELECT id, bucket, vendor, strategy, is_active,
		        COALESCE(time_to_prepare, ''), time_to_start,
		        COALESCE(time_to_end, ''), COALESCE(time_to_query_result, ''),
		        dynamic_late_dpd, split_threshold, updated_at
		 FROM campaign_configurations WHERE bucket = $1`, string(bucket)).
		Scan(&cfg.ID, &cfg.Bucket, &cfg.Vendor, &cfg.Strategy, &cfg.IsActive,
			&cfg.TimeToPrepare, &cfg.TimeToStart, &cfg.TimeToEnd, &cfg.TimeToQueryResult,
			&cfg.DynamicLateDPD, &cfg.SplitThreshold, &cfg.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}

	return &cfg, nil
}

func (s *storage) GetActiveCampaignConfigurations(ctx context.Context) ([]*domain.CampaignConfiguration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bucket, vendor, strategy, is_active,
		        COALESCE(time_to_prepare, ''), time_to_start,
		        COALESCE(time_to_end, ''), COALESCE(time_to_query_result, ''),
		        dynamic_late_dpd, split_threshold, updated_at
		 FROM campaign_configurations WHERE is_active ORDER BY bucket`)
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	configs := []*domain.CampaignConfiguration{}
	for rows.Next() {
		var cfg domain.CampaignConfiguration
		if err = rows.Scan(&cfg.ID, &cfg.Bucket, &cfg.Vendor, &cfg.Strategy, &cfg.IsActive,
			&cfg.TimeToPrepare, &cfg.TimeToStart, &cfg.TimeToEnd, &cfg.TimeToQueryResult,
			&cfg.DynamicLateDPD, &cfg.SplitThreshold, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, &cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return configs, nil
}

const eligibilityColumns = `account_id, bucket, customer_name, phone_number,
	account_status, dpd, outstanding_amount, ptp_date, do_not_call, COALESCE(filter_id, '')`

func (s *storage) GetEligibilityCandidates(ctx context.Context, bucket domain.BucketName) ([]*domain.EligibilityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eligibilityColumns+` FROM eligibility_records
		 WHERE bucket = $1 ORDER BY account_id`, string(bucket))
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	return collectEligibilityRecords(rows)
}

func (s *storage) GetEligibilityRecordsByAccountIDs(ctx context.Context, accountIDs []int64) ([]*domain.EligibilityRecord, error) {
	var ids pgtype.Int8Array
	if err := ids.Set(accountIDs); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+eligibilityColumns+` FROM eligibility_records
		 WHERE account_id = ANY($1) ORDER BY account_id`, &ids)
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer rows.Close()

	return collectEligibilityRecords(rows)
}

func (s *storage) MarkEligibilityFilter(ctx context.Context, accountID int64, filterID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE eligibility_records SET filter_id = $2 WHERE account_id = $1`,
		accountID, filterID)
	return err
}

func (s *storage) InsertBatch(ctx context.Context, batch domain.Batch) error {
	var ids pgtype.Int8Array
	if err := ids.Set(batch.AccountIDs); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dialer_batches (bucket, number, account_ids)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (bucket, number, (created_at::date))
		 DO UPDATE SET account_ids = EXCLUDED.account_ids`,
		string(batch.Bucket), batch.Number, &ids)
	return err
}

func (s *storage) GetBatch(ctx context.Context, bucket domain.BucketName, number int32) (*domain.Batch, error) {
	batch := domain.Batch{Bucket: bucket, Number: number}
	var ids pgtype.Int8Array
	err := s.pool.QueryRow(ctx,
		`SELECT account_ids FROM dialer_batches
		 WHERE bucket = $1 AND number = $2 ORDER BY id DESC LIMIT 1`,
		string(bucket), number).Scan(&ids)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err = ids.AssignTo(&batch.AccountIDs); err != nil {
		return nil, err
	}

	return &batch, nil
}

func (s *storage) CountBatches(ctx context.Context, bucket domain.BucketName, since time.Time) (int32, error) {
	var count int32
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dialer_batches WHERE bucket = $1 AND created_at >= $2`,
		string(bucket), since).Scan(&count)
	return count, err
}

func (s *storage) UpsertContactHistory(ctx context.Context, history domain.ContactHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_histories (account_id, external_task_id, vendor, outcome, called_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id, external_task_id)
		 DO UPDATE SET outcome = EXCLUDED.outcome, called_at = EXCLUDED.called_at`,
		history.AccountID, history.ExternalTaskID, string(history.Vendor),
		string(history.Outcome), history.CalledAt)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner, task *domain.DialerTask) error {
	var batchNo pgtype.Int4
	var externalID, taskErr pgtype.Text

	err := row.Scan(&task.ID, &task.StageType, &task.Vendor, &task.Status,
		&batchNo, &externalID, &taskErr, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return err
	}

	if batchNo.Status == pgtype.Present {
		task.BatchNo = &batchNo.Int
	}
	if externalID.Status == pgtype.Present {
		task.ExternalID = &externalID.String
	}
	if taskErr.Status == pgtype.Present {
		task.Error = &taskErr.String
	}

	return nil
}

type taskRows interface {
	Next() bool
	Err() error
	Scan(dest ...interface{}) error
}

func collectTasks(rows taskRows) ([]*domain.DialerTask, error) {
	tasks := []*domain.DialerTask{}
	for rows.Next() {
		var task domain.DialerTask
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

func collectEligibilityRecords(rows taskRows) ([]*domain.EligibilityRecord, error) {
	records := []*domain.EligibilityRecord{}
	for rows.Next() {
		var rec domain.EligibilityRecord
		var ptpDate pgtype.Date
		if err := rows.Scan(&rec.AccountID, &rec.Bucket, &rec.CustomerName, &rec.PhoneNumber,
			&rec.AccountStatus, &rec.DPD, &rec.OutstandingAmount, &ptpDate,
			&rec.DoNotCall, &rec.FilterID); err != nil {
			return nil, err
		}
		if ptpDate.Status == pgtype.Present {
			ptp := ptpDate.Time
			rec.PTPDate = &ptp
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func batchNoValue(batchNo *int32) pgtype.Int4 {
	if batchNo == nil {
		return pgtype.Int4{Status: pgtype.Null}
	}
	return pgtype.Int4{Int: *batchNo, Status: pgtype.Present}
}

func int4Value(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Status: pgtype.Null}
	}
	return pgtype.Int4{Int: *v, Status: pgtype.Present}
}

func textValue(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{Status: pgtype.Null}
	}
	return pgtype.Text{String: *v, Status: pgtype.Present}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func notFoundOr(err error) error {
	if strings.Contains(err.Error(), "no rows") {
		return errval.ErrNotFound
	}
	return err
}

func rollback(ctx context.Context, tx interface {
	Rollback(ctx context.Context) error
}) {
	if err := tx.Rollback(ctx); err != nil {
		slog.Error("Error occurred while rolling back transaction", "error", err.Error())
	}
}
