package visit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/utafrali/fieldsales/internal/domain"
)

// Multipart field names understood by the check-in endpoint.
const (
	FieldShopID           = "shop_id"
	FieldShopName         = "shop_name"
	FieldShopAddress      = "shop_address"
	FieldBrandID          = "brand_id"
	FieldCategoryID       = "category_id"
	FieldProductID        = "product_id"
	FieldLatitude         = "latitude"
	FieldLongitude        = "longitude"
	FieldNotes            = "notes"
	FieldVisitType        = "visit_type"
	FieldAnswers          = "answers"
	FieldPhoto            = "photo"
	FieldAdditionalPhotos = "additional_photos"
)

// EncodeForm builds the multipart body for sub. photos are data URLs in
// submission order; the first is the primary photo.
func EncodeForm(sub *domain.VisitSubmission, photos []string) (contentType string, body []byte, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := make([][2]string, 0, 12)
	add := func(k, v string) { fields = append(fields, [2]string{k, v}) }

	if sub.Shop != nil {
		if sub.Shop.ID != 0 {
			add(FieldShopID, strconv.FormatInt(sub.Shop.ID, 10))
		} else {
			add(FieldShopName, sub.Shop.Name)
			add(FieldShopAddress, sub.Shop.Address)
		}
	}
	for _, opt := range []struct {
		name string
		id   *int64
	}{
		{FieldBrandID, sub.BrandID},
		{FieldCategoryID, sub.CategoryID},
		{FieldProductID, sub.ProductID},
	} {
		if opt.id != nil {
			add(opt.name, strconv.FormatInt(*opt.id, 10))
		}
	}

	lat, lng := 0.0, 0.0
	if sub.Location != nil {
		lat, lng = sub.Location.Lat, sub.Location.Lng
	}
	add(FieldLatitude, strconv.FormatFloat(lat, 'f', -1, 64))
	add(FieldLongitude, strconv.FormatFloat(lng, 'f', -1, 64))
	add(FieldNotes, sub.Notes)
	add(FieldVisitType, string(sub.Kind))

	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return "", nil, fmt.Errorf("encode answers: %w", err)
	}
	add(FieldAnswers, string(answers))

	if len(photos) > 0 {
		add(FieldPhoto, photos[0])
	}
	if len(photos) > 1 {
		extra, err := json.Marshal(photos[1:])
		if err != nil {
			return "", nil, fmt.Errorf("encode additional photos: %w", err)
		}
		add(FieldAdditionalPhotos, string(extra))
	}

	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return mw.FormDataContentType(), buf.Bytes(), nil
}
