package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/visit"
	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/httputil"
	"github.com/utafrali/fieldsales/pkg/logger"
)

const maxVisitUpload = 64 << 20

// VisitSubmitter submits a visit with the given bearer token.
type VisitSubmitter interface {
	Submit(ctx context.Context, token string, sub *domain.VisitSubmission) (*domain.VisitResult, error)
}

// VisitHandler accepts visits from a local UI and runs them through the
// submission pipeline.
type VisitHandler struct {
	sessions      SessionService
	submitter     VisitSubmitter
	safetyTimeout time.Duration
	logger        *slog.Logger
}

// NewVisitHandler creates a VisitHandler. safetyTimeout is how long a
// submission may run before it is reported as stuck.
func NewVisitHandler(sessions SessionService, submitter VisitSubmitter, safetyTimeout time.Duration, logger *slog.Logger) *VisitHandler {
	return &VisitHandler{
		sessions:      sessions,
		submitter:     submitter,
		safetyTimeout: safetyTimeout,
		logger:        logger,
	}
}

// Create handles POST /agent/visits
//
// Form fields mirror the check-in endpoint: visit_type, shop_id or shop_name and
// shop_address, latitude, longitude, notes, brand_id, category_id,
// product_id, answers (a JSON object) and one or more "photos" files.
func (h *VisitHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVisitUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart form: "+err.Error()), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sub, err := submissionFromForm(r.MultipartForm)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)
	token := h.sessions.Snapshot().Token

	var res *domain.VisitResult
	err = visit.RunWithDeadline(ctx, h.safetyTimeout,
		func(ctx context.Context) error {
			var err error
			res, err = h.submitter.Submit(ctx, token, sub)
			return err
		},
		func() {
			log.WarnContext(ctx, "visit submission still running",
				slog.Duration("after", h.safetyTimeout),
			)
		},
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}

// submissionFromForm maps the console form onto a VisitSubmission.
// Malformed numbers are validation failures.
func submissionFromForm(form *multipart.Form) (*domain.VisitSubmission, error) {
	get := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	kind, err := domain.ParseVisitKind(get(visit.FieldVisitType))
	if err != nil {
		return nil, apperrors.ValidationFailure(err.Error())
	}
	sub := &domain.VisitSubmission{Kind: kind, Notes: get(visit.FieldNotes)}

	shopID, err := optionalID(get(visit.FieldShopID), visit.FieldShopID)
	if err != nil {
		return nil, err
	}
	switch {
	case shopID != nil:
		sub.Shop = &domain.ShopRef{ID: *shopID}
	case get(visit.FieldShopName) != "":
		sub.Shop = &domain.ShopRef{Name: get(visit.FieldShopName), Address: get(visit.FieldShopAddress)}
	}

	if lat, lng := get(visit.FieldLatitude), get(visit.FieldLongitude); lat != "" || lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			return nil, apperrors.ValidationFailure("latitude and longitude must both be numbers")
		}
		sub.Location = &domain.Location{Lat: la, Lng: lo}
	}

	for _, f := range []struct {
		name string
		dst  **int64
	}{
		{visit.FieldBrandID, &sub.BrandID},
		{visit.FieldCategoryID, &sub.CategoryID},
		{visit.FieldProductID, &sub.ProductID},
	} {
		if *f.dst, err = optionalID(get(f.name), f.name); err != nil {
			return nil, err
		}
	}

	if raw := get(visit.FieldAnswers); raw != "" {
		answers, err := visit.ParseAnswersJSON([]byte(raw))
		if err != nil {
			return nil, apperrors.ValidationFailure(err.Error())
		}
		sub.Answers = answers
	}

	for _, fh := range form.File["photos"] {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		sub.Photos = append(sub.Photos, domain.Photo{Name: fh.Filename, Data: data})
	}
	return sub, nil
}

func optionalID(s, field string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, apperrors.ValidationFailure(fmt.Sprintf("%s must be an integer", field))
	}
	return &id, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read photo %s: %w", fh.Filename, err)
	}
	return data, nil
}
