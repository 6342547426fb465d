package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParsingLogRepo writes structured diagnostic rows to the canonical
// parsing_logs shape: (id, task_id, supplier_id, error_type, message,
// row_number, row_data, created_at), no severity column.
type ParsingLogRepo struct {
	pool *pgxpool.Pool
}

// NewParsingLogRepo constructs a ParsingLogRepo.
func NewParsingLogRepo(pool *pgxpool.Pool) *ParsingLogRepo {
	return &ParsingLogRepo{pool: pool}
}

const insertParsingLogQuery = `
INSERT INTO parsing_logs (task_id, supplier_id, error_type, message, row_number, row_data)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

// Insert appends one diagnostic row; parsing_logs is append-only.
func (r *ParsingLogRepo) Insert(ctx context.Context, log catalog.ParsingLog) (catalog.ParsingLog, error) {
	var rowDataJSON []byte
	if log.RowData != nil {
		var err error
		rowDataJSON, err = json.Marshal(log.RowData)
		if err != nil {
			return catalog.ParsingLog{}, fmt.Errorf("repository: marshal row_data: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, insertParsingLogQuery, log.TaskID, log.SupplierID, log.ErrorType, log.Message, log.RowNumber, rowDataJSON)
	if err := row.Scan(&log.ID); err != nil {
		return catalog.ParsingLog{}, fmt.Errorf("repository: insert parsing log for task %s: %w", log.TaskID, err)
	}
	return log, nil
}

const insertParsingLogBatchQuery = `
INSERT INTO parsing_logs (task_id, supplier_id, error_type, message, row_number, row_data)
SELECT * FROM unnest($1::text[], $2::uuid[], $3::text[], $4::text[], $5::int[], $6::jsonb[])`

// InsertBatch appends many diagnostic rows in one round trip, used when an
// extraction chunk produces dozens of per-row errors.
func (r *ParsingLogRepo) InsertBatch(ctx context.Context, logs []catalog.ParsingLog) error {
	if len(logs) == 0 {
		return nil
	}

	taskIDs := make([]string, len(logs))
	supplierIDs := make([]*string, len(logs))
	errorTypes := make([]string, len(logs))
	messages := make([]string, len(logs))
	rowNumbers := make([]*int, len(logs))
	rowData := make([][]byte, len(logs))

	for i, l := range logs {
		taskIDs[i] = l.TaskID
		if l.SupplierID != nil {
			s := l.SupplierID.String()
			supplierIDs[i] = &s
		}
		errorTypes[i] = l.ErrorType
		messages[i] = l.Message
		rowNumbers[i] = l.RowNumber
		if l.RowData != nil {
			data, err := json.Marshal(l.RowData)
			if err != nil {
				return fmt.Errorf("repository: marshal row_data at index %d: %w", i, err)
			}
			rowData[i] = data
		}
	}

	_, err := r.pool.Exec(ctx, insertParsingLogBatchQuery, taskIDs, supplierIDs, errorTypes, messages, rowNumbers, rowData)
	if err != nil {
		return fmt.Errorf("repository: insert parsing log batch: %w", err)
	}
	return nil
}
