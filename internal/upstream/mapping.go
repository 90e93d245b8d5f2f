package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"donortrack/internal/store"
)

type field int

const (
	fieldPMM field = iota
	fieldFirstName
	fieldNickName
	fieldLastName
	fieldOrganization
	fieldTotalDonations
	fieldCity
)

// Positions used when the service sends no recognisable header for a field.
var fallbackIndex = map[field]int{
	fieldPMM:            0,
	fieldFirstName:      5,
	fieldNickName:       6,
	fieldLastName:       7,
	fieldOrganization:   8,
	fieldTotalDonations: 9,
	fieldCity:           20,
}

var headerNames = map[string]field{
	"pmm":               fieldPMM,
	"first_name":        fieldFirstName,
	"nick_name":         fieldNickName,
	"nickname":          fieldNickName,
	"last_name":         fieldLastName,
	"organization_name": fieldOrganization,
	"organization":      fieldOrganization,
	"total_donations":   fieldTotalDonations,
	"city":              fieldCity,
}

// Layout resolves field positions for one response.
type Layout map[field]int

// NewLayout maps each field to the column whose header names it, falling
// back to the fixed position when no header matches.
func NewLayout(headers []string) Layout {
	l := Layout{}
	for i, h := range headers {
		key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(h)))
		if f, ok := headerNames[key]; ok {
			if _, seen := l[f]; !seen {
				l[f] = i
			}
		}
	}
	for f, idx := range fallbackIndex {
		if _, ok := l[f]; !ok {
			l[f] = idx
		}
	}
	return l
}

// DonorFromRow converts one positional row into a donor record.
func (l Layout) DonorFromRow(row []any) (store.DonorInput, error) {
	cell := func(f field) any {
		if i := l[f]; i >= 0 && i < len(row) {
			return row[i]
		}
		return nil
	}
	total, err := cellFloat(cell(fieldTotalDonations))
	if err != nil {
		return store.DonorInput{}, fmt.Errorf("total_donations: %w", err)
	}
	return store.DonorInput{
		PMM:              cellString(cell(fieldPMM)),
		FirstName:        cellString(cell(fieldFirstName)),
		NickName:         cellString(cell(fieldNickName)),
		LastName:         cellString(cell(fieldLastName)),
		OrganizationName: cellString(cell(fieldOrganization)),
		City:             cellString(cell(fieldCity)),
		TotalDonations:   total,
	}, nil
}

// DonorFromRow maps a single row using the given headers.
func DonorFromRow(headers []string, row []any) (store.DonorInput, error) {
	return NewLayout(headers).DonorFromRow(row)
}

// Donors maps every row of t. The first unmappable row aborts with its index.
func (t Table) Donors() ([]store.DonorInput, error) {
	l := NewLayout(t.Headers)
	res := make([]store.DonorInput, 0, len(t.Data))
	for i, row := range t.Data {
		d, err := l.DonorFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		res = append(res, d)
	}
	return res, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func cellFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(x))
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("unexpected value %v (%T)", v, v)
}
