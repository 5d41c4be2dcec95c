package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/metrics"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
)

// Provenance is the network origin of a request, supplied by the transport
// layer.
type Provenance struct {
	SourceAddr  string
	ClientAgent string
}

// RecordInput describes one completed mutating action. Detail carries a typed
// payload from the details package (or a reconciliation summary); Prior is an
// optional before-state snapshot.
type RecordInput struct {
	ActorID    *uuid.UUID
	Action     enums.AuditAction
	EntityType string
	EntityID   string
	Detail     any
	Prior      any
	Provenance Provenance
	RiskTags   []enums.RiskTag
}

// Filter bounds an audit query. From and To are inclusive calendar dates;
// HourFrom/HourTo restrict the local hour-of-day within each day of the
// span, never a single window across midnight.
type Filter struct {
	ActorID  *uuid.UUID
	Action   *enums.AuditAction
	From     *time.Time
	To       *time.Time
	HourFrom *int
	HourTo   *int
	Limit    int
	Cursor   *pagination.Cursor
}

// Service is the audit recorder. Writes are final: the public contract has
// no update and no delete.
type Service interface {
	// WithTx rebinds the recorder so the entry lands in the caller's
	// transaction, next to the mutation it describes.
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.AuditEntry, error)
	Query(ctx context.Context, filter Filter) ([]models.AuditEntry, *pagination.Cursor, error)
	ExportCSV(ctx context.Context, filter Filter, w io.Writer) (int, error)
}

type service struct {
	repo     Repository
	location *time.Location
	metrics  *metrics.EngineMetrics
}

// NewService builds the audit recorder. The location resolves hour-of-day
// filters; entries themselves are stored in UTC.
func NewService(repo Repository, location *time.Location, engineMetrics *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if location == nil {
		location = time.UTC
	}
	return &service{repo: repo, location: location, metrics: engineMetrics}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), location: s.location, metrics: s.metrics}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.AuditEntry, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audit action %q", input.Action))
	}
	if input.EntityType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity type required")
	}

	detail, err := marshalPayload(input.Detail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit detail")
	}

	entry := &models.AuditEntry{
		ActorID:     input.ActorID,
		Action:      input.Action,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		Detail:      detail,
		SourceAddr:  input.Provenance.SourceAddr,
		ClientAgent: input.Provenance.ClientAgent,
		RiskTags:    riskTagStrings(input.RiskTags),
	}
	if input.Prior != nil {
		prior, err := json.Marshal(input.Prior)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode prior snapshot")
		}
		entry.PriorSnapshot = prior
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append audit entry")
	}
	s.metrics.IncAuditEntry(entry.Action.String())
	return entry, nil
}

func (s *service) Query(ctx context.Context, filter Filter) ([]models.AuditEntry, *pagination.Cursor, error) {
	params, err := s.listParams(filter)
	if err != nil {
		return nil, nil, err
	}
	entries, cursor, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query audit entries")
	}
	return entries, cursor, nil
}

// listParams validates the filter and expands inclusive dates into instant
// bounds in the configured timezone.
func (s *service) listParams(filter Filter) (listEntriesParams, error) {
	params := listEntriesParams{
		ActorID:  filter.ActorID,
		Action:   filter.Action,
		Timezone: s.location.String(),
		Limit:    filter.Limit,
		Cursor:   filter.Cursor,
	}

	if filter.Action != nil && !filter.Action.IsValid() {
		return params, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audit action %q", *filter.Action))
	}
	if filter.Cursor != nil {
		if _, err := strconv.ParseInt(filter.Cursor.Key, 10, 64); err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "malformed pagination cursor")
		}
	}
	if (filter.HourFrom == nil) != (filter.HourTo == nil) {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "hour range requires both bounds")
	}
	if filter.HourFrom != nil {
		from, to := *filter.HourFrom, *filter.HourTo
		if from < 0 || to > 23 || from > to {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "hour range must satisfy 0 <= from <= to <= 23")
		}
		params.HourFrom = &from
		params.HourTo = &to
	}
	if filter.From != nil {
		from := dayStart(*filter.From, s.location)
		params.From = &from
	}
	if filter.To != nil {
		to := dayStart(*filter.To, s.location).AddDate(0, 0, 1)
		params.To = &to
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "date range start must not be after end")
	}
	return params, nil
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func marshalPayload(detail any) (json.RawMessage, error) {
	if detail == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(detail)
}

func riskTagStrings(tags []enums.RiskTag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}
