package domain

import "fmt"

// VisitKind distinguishes shop check-ins from individual consumer visits.
type VisitKind string

const (
	VisitIndividual VisitKind = "individual"
	VisitCustomer   VisitKind = "customer"
)

// ParseVisitKind validates a kind name.
func ParseVisitKind(s string) (VisitKind, error) {
	switch k := VisitKind(s); k {
	case VisitIndividual, VisitCustomer:
		return k, nil
	default:
		return "", fmt.Errorf("unknown visit kind %q", s)
	}
}

// ShopRef identifies a shop either by ID or, for shops not yet registered,
// by name and address.
type ShopRef struct {
	ID      int64  `validate:"required_without=Name"`
	Name    string `validate:"required_without=ID,max=200"`
	Address string `validate:"required_with=Name,max=500"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `validate:"latitude"`
	Lng float64 `validate:"longitude"`
}

// Photo is one raw image as captured on the device.
type Photo struct {
	Name string
	Data []byte
}

// VisitSubmission is a completed visit awaiting upload. It is consumed by
// exactly one POST.
type VisitSubmission struct {
	Shop       *ShopRef
	Location   *Location
	Kind       VisitKind `validate:"required,oneof=individual customer"`
	Answers    Answers
	Photos     []Photo
	Notes      string `validate:"max=2000"`
	BrandID    *int64 `validate:"omitempty,gt=0"`
	CategoryID *int64 `validate:"omitempty,gt=0"`
	ProductID  *int64 `validate:"omitempty,gt=0"`
}

// VisitResult is the backend's acknowledgement of a created visit.
type VisitResult struct {
	VisitID         int64  `json:"visit_id"`
	VisitResponseID *int64 `json:"visit_response_id,omitempty"`
}
