// Package visit turns a completed visit into one multipart check-in
// request: it checks the visit's preconditions, compresses the photos,
// serializes the survey answers and posts the result once.
package visit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/fieldsales/internal/domain"
	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/tracing"
	"github.com/utafrali/fieldsales/pkg/validator"
)

// MaxPhotoBytes caps a single raw photo.
const MaxPhotoBytes = 25 << 20

// Uploader posts an encoded check-in.
type Uploader interface {
	Checkin(ctx context.Context, token, contentType string, body []byte) (*domain.VisitResult, error)
}

// Pipeline submits visits.
type Pipeline struct {
	uploader   Uploader
	compressor *Compressor
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewPipeline creates a Pipeline.
func NewPipeline(uploader Uploader, compressor *Compressor, logger *slog.Logger) *Pipeline {
	if compressor == nil {
		compressor = NewCompressor(nil, 0)
	}
	return &Pipeline{
		uploader:   uploader,
		compressor: compressor,
		logger:     logger,
		tracer:     tracing.Tracer("github.com/utafrali/fieldsales/internal/visit"),
	}
}

// Validate checks sub without touching the network.
func Validate(sub *domain.VisitSubmission) error {
	if sub == nil {
		return apperrors.ValidationFailure("visit is required")
	}
	if err := validator.Validate(sub); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			return apperrors.ValidationFailure(ve.Error())
		}
		return apperrors.ValidationFailure(err.Error())
	}

	if sub.Kind == domain.VisitCustomer {
		if sub.Shop == nil {
			return apperrors.ValidationFailure("customer visits require a shop")
		}
		if len(sub.Photos) == 0 {
			return apperrors.ValidationFailure("customer visits require at least one photo")
		}
		if sub.Location == nil {
			return apperrors.ValidationFailure("customer visits require a location")
		}
	}
	for i, p := range sub.Photos {
		if len(p.Data) == 0 {
			return apperrors.ValidationFailure(fmt.Sprintf("photo %d is empty", i+1))
		}
		if len(p.Data) > MaxPhotoBytes {
			return apperrors.ValidationFailure(fmt.Sprintf("photo %d exceeds %d bytes", i+1, MaxPhotoBytes))
		}
		if err := checkDimensions(p.Data); err != nil {
			return apperrors.ValidationFailure(fmt.Sprintf("photo %d: %v", i+1, err))
		}
	}
	return nil
}

// Submit validates, compresses, encodes and posts sub with token. It
// makes at most one network call, and none when validation fails.
func (p *Pipeline) Submit(ctx context.Context, token string, sub *domain.VisitSubmission) (*domain.VisitResult, error) {
	ctx, span := p.tracer.Start(ctx, "visit.Submit")
	defer span.End()

	kind := "unknown"
	if sub != nil {
		kind = string(sub.Kind)
	}
	span.SetAttributes(attribute.String("visit.kind", kind))

	if err := Validate(sub); err != nil {
		submissionsTotal.WithLabelValues(kind, "invalid").Inc()
		return nil, err
	}
	if token == "" {
		submissionsTotal.WithLabelValues(kind, "invalid").Inc()
		return nil, apperrors.Unauthorized("sign in before submitting a visit")
	}

	photos := make([]string, 0, len(sub.Photos))
	for i, photo := range sub.Photos {
		c, err := p.compressor.Compress(photo.Data)
		if err != nil {
			submissionsTotal.WithLabelValues(kind, "failed").Inc()
			return nil, fmt.Errorf("photo %d: %w", i+1, err)
		}
		p.logger.DebugContext(ctx, "photo compressed",
			slog.Int("index", i),
			slog.Int("raw_bytes", len(photo.Data)),
			slog.Int("bytes", len(c.Data)),
			slog.Int("attempts", c.Attempts),
		)
		photos = append(photos, c.DataURL())
	}

	contentType, body, err := EncodeForm(sub, photos)
	if err != nil {
		submissionsTotal.WithLabelValues(kind, "failed").Inc()
		return nil, err
	}

	res, err := p.uploader.Checkin(ctx, token, contentType, body)
	if err != nil {
		result := "failed"
		if errors.Is(err, apperrors.ErrSubmission) {
			result = "rejected"
		}
		submissionsTotal.WithLabelValues(kind, result).Inc()
		tracing.RecordError(span, err)
		p.logger.WarnContext(ctx, "visit submission failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	submissionsTotal.WithLabelValues(kind, "success").Inc()
	p.logger.InfoContext(ctx, "visit submitted",
		slog.Int64("visit_id", res.VisitID),
		slog.String("kind", kind),
		slog.Int("photos", len(photos)),
	)
	return res, nil
}
