package dues

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// ArchiveStore uploads export archives and hands out time-limited links
type ArchiveStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const exportPageSize = 500

// exportLine is one JSON line of a ledger archive
type exportLine struct {
	Type        string               `json:"type"`
	Due         *DueResponse         `json:"due,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// ExportService writes a tenant's dues and transactions to an archive store
type ExportService struct {
	dueRepo         dues.DueRecordRepository
	transactionRepo dues.TransactionRepository
	store           ArchiveStore
	linkTTL         time.Duration
	now             func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService(dueRepo dues.DueRecordRepository, transactionRepo dues.TransactionRepository, store ArchiveStore, linkTTL time.Duration) *ExportService {
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &ExportService{
		dueRepo:         dueRepo,
		transactionRepo: transactionRepo,
		store:           store,
		linkTTL:         linkTTL,
		now:             time.Now,
	}
}

// ExportLedger uploads every due and transaction of the tenant as JSON
// lines and returns a presigned download link.
func (s *ExportService) ExportLedger(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) (*ExportResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "export", "ledger")
	defer span.End()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	dueCount := 0
	dueFilter := dues.DueRecordFilter{Filter: pageFilter(1, exportPageSize, "created_at", "asc")}
	dueFilter.PageSize = exportPageSize
	for {
		page, err := s.dueRepo.FindAllForTenant(ctx, tenantID, dueFilter)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		for i := range page {
			resp := ToDueResponse(&page[i])
			if err := enc.Encode(exportLine{Type: "due", Due: &resp}); err != nil {
				return nil, fmt.Errorf("failed to encode due: %w", err)
			}
		}
		dueCount += len(page)
		if len(page) < exportPageSize {
			break
		}
		dueFilter.Page++
	}

	txCount := 0
	txFilter := dues.TransactionFilter{Filter: pageFilter(1, exportPageSize, "timestamp", "asc")}
	txFilter.PageSize = exportPageSize
	for {
		page, err := s.transactionRepo.FindAllForTenant(ctx, tenantID, txFilter)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		for i := range page {
			resp := ToTransactionResponse(&page[i])
			if err := enc.Encode(exportLine{Type: "transaction", Transaction: &resp}); err != nil {
				return nil, fmt.Errorf("failed to encode transaction: %w", err)
			}
		}
		txCount += len(page)
		if len(page) < exportPageSize {
			break
		}
		txFilter.Page++
	}

	now := s.now().UTC()
	key := fmt.Sprintf("exports/%s/ledger-%s.jsonl", tenantID, now.Format("20060102T150405Z"))
	if err := s.store.Put(ctx, key, "application/x-ndjson", buf.Bytes()); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	url, err := s.store.PresignGet(ctx, key, s.linkTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to presign export: %w", err)
	}

	telemetry.SetAttributes(span, "dues", dueCount, "transactions", txCount, "bytes", buf.Len())
	return &ExportResponse{
		Key:          key,
		URL:          url,
		DueCount:     dueCount,
		Transactions: txCount,
		ExpiresAt:    now.Add(s.linkTTL),
	}, nil
}
