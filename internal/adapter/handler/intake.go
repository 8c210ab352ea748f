package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
	"github.com/rl1809/paper-fulfillment/internal/port"
)

var ErrInvalidRequest = errors.New("invalid request")

// Fulfiller is the part of the coordinator the transports need.
type Fulfiller interface {
	Process(ctx context.Context, req domain.CustomerRequest) (service.Result, error)
	Refund(ctx context.Context, transactionID, reason string) (domain.Transaction, error)
}

type SubmitRequest struct {
	RequestID    string                 `json:"request_id"`
	CustomerName string                 `json:"customer_name"`
	Request      string                 `json:"request"`
	Context      domain.CustomerContext `json:"customer_context"`
	RequestDate  string                 `json:"request_date,omitempty"`
}

type SubmitResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Message string         `json:"message"`
}

type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type RefundResponse struct {
	Transaction domain.Transaction `json:"transaction"`
}

// Intake is the transport-independent front of the coordinator: validation,
// request-id dedupe and caching of the latest report.
type Intake struct {
	svc    Fulfiller
	cache  port.CacheRepository
	logger *zap.Logger

	mu     sync.RWMutex
	latest *domain.BusinessReport
}

// NewIntake builds an Intake. cache may be nil, in which case duplicate request
// ids are not detected and the latest report is only kept in memory.
func NewIntake(svc Fulfiller, cache port.CacheRepository, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{svc: svc, cache: cache, logger: logger}
}

func (in *Intake) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	if strings.TrimSpace(req.Request) == "" {
		return SubmitResponse{}, fmt.Errorf("%w: request text is required", ErrInvalidRequest)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	at := time.Now().UTC()
	if req.RequestDate != "" {
		t, err := domain.ParseRequestDate(req.RequestDate)
		if err != nil {
			return SubmitResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		at = t
	}

	if in.cache != nil {
		ok, err := in.cache.SetIdempotency(ctx, req.RequestID)
		if err != nil {
			return SubmitResponse{}, fmt.Errorf("idempotency check: %w", err)
		}
		if !ok {
			return SubmitResponse{}, service.ErrDuplicateRequest
		}
	}

	res, err := in.svc.Process(ctx, domain.CustomerRequest{
		ID:           req.RequestID,
		CustomerName: req.CustomerName,
		RawText:      req.Request,
		Context:      req.Context,
		RequestedAt:  at,
	})
	if err != nil {
		// Nothing was committed, so the id is free to be retried.
		in.release(ctx, req.RequestID)
		return SubmitResponse{}, err
	}

	if res.Report != nil {
		in.remember(ctx, *res.Report)
	}
	return SubmitResponse{Outcome: res.Outcome, Message: res.Message}, nil
}

func (in *Intake) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if req.TransactionID == "" {
		return RefundResponse{}, fmt.Errorf("%w: transaction id is required", ErrInvalidRequest)
	}
	tx, err := in.svc.Refund(ctx, req.TransactionID, req.Reason)
	if err != nil {
		return RefundResponse{}, err
	}
	return RefundResponse{Transaction: tx}, nil
}

// LatestReport returns the newest business report, nil when none was produced yet.
func (in *Intake) LatestReport(ctx context.Context) (*domain.BusinessReport, error) {
	if in.cache != nil {
		r, err := in.cache.LatestReport(ctx)
		if err == nil && r != nil {
			return r, nil
		}
		if err != nil {
			in.logger.Warn("failed to read cached report", zap.Error(err))
		}
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.latest, nil
}

func (in *Intake) release(ctx context.Context, requestID string) {
	if in.cache == nil {
		return
	}
	if err := in.cache.ReleaseIdempotency(context.WithoutCancel(ctx), requestID); err != nil {
		in.logger.Warn("failed to release request id", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (in *Intake) remember(ctx context.Context, r domain.BusinessReport) {
	in.mu.Lock()
	if in.latest == nil || r.Sequence > in.latest.Sequence {
		in.latest = &r
	}
	in.mu.Unlock()

	if in.cache != nil {
		if err := in.cache.CacheReport(context.WithoutCancel(ctx), r); err != nil {
			in.logger.Warn("failed to cache report", zap.Int("sequence", r.Sequence), zap.Error(err))
		}
	}
}
