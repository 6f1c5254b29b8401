package ingest

import (
	"errors"
	"strings"
)

// Row-level mapping errors. These are recoverable: the row is skipped and
// processing continues.
var (
	ErrRowArity = errors.New("row column count does not match header")
	ErrNoEmail  = errors.New("email column could not be resolved")
	ErrBlankRow = errors.New("row is entirely blank")
)

// CanonicalField names a column of the canonical contact record.
type CanonicalField string

const (
	FieldEmail           CanonicalField = "email"
	FieldFirstName       CanonicalField = "first_name"
	FieldLastName        CanonicalField = "last_name"
	FieldPhone           CanonicalField = "phone"
	FieldState           CanonicalField = "state"
	FieldBusinessName    CanonicalField = "business_name"
	FieldBusinessAddress CanonicalField = "business_address"
	FieldTags            CanonicalField = "tags"
)

// fieldFragments maps each canonical field to the normalized-substring
// fragments that claim a header column. A header matches when its normalized
// form (lowercase, non-alphanumerics stripped) contains any fragment. This
// is deliberately permissive: "first_approval_date" matches "first". The
// audience exports we receive are too inconsistent for exact matching, and
// first-match-wins keeps the behavior predictable.
var fieldFragments = []struct {
	field     CanonicalField
	fragments []string
}{
	{FieldEmail, []string{"email"}},
	{FieldFirstName, []string{"fname", "firstname", "first"}},
	{FieldLastName, []string{"lname", "lastname", "last"}},
	{FieldPhone, []string{"phone", "mobile"}},
	{FieldState, []string{"state"}},
	{FieldBusinessName, []string{"company", "business", "org"}},
	{FieldBusinessAddress, []string{"address"}},
	{FieldTags, []string{"tag"}},
}

// emailExactKeys is the last-resort fallback when no header fragment-matches
// the email field.
var emailExactKeys = []string{"email", "Email", "email_address"}

// Record is one mapped row: the canonical field set plus the raw original
// row retained for audit.
type Record struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	State           string
	BusinessName    string
	BusinessAddress string
	Tags            []string
	Raw             map[string]string
}

// Mapper resolves a header row once and then maps data rows onto Records.
type Mapper struct {
	header   []string
	bindings map[CanonicalField]int
}

// NewMapper binds header columns to canonical fields. For each canonical
// field the first header column whose normalized form contains one of the
// field's fragments wins; later columns are ignored.
func NewMapper(header []string) *Mapper {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeKey(h)
	}

	bindings := make(map[CanonicalField]int)
	for _, ff := range fieldFragments {
		for col, key := range normalized {
			if containsAny(key, ff.fragments) {
				bindings[ff.field] = col
				break
			}
		}
	}

	// Exact-key fallback for email when no fragment matched.
	if _, ok := bindings[FieldEmail]; !ok {
		for col, h := range header {
			for _, exact := range emailExactKeys {
				if strings.TrimSpace(h) == exact {
					bindings[FieldEmail] = col
					break
				}
			}
			if _, ok := bindings[FieldEmail]; ok {
				break
			}
		}
	}

	return &Mapper{header: header, bindings: bindings}
}

// EmailResolved reports whether the header yielded an email column. When it
// didn't, every data row is unmappable.
func (m *Mapper) EmailResolved() bool {
	_, ok := m.bindings[FieldEmail]
	return ok
}

// MapRow maps one data row onto a Record. Returns ErrBlankRow for rows that
// are entirely blank (dropped silently, not counted as skipped), ErrRowArity
// when the row's column count differs from the header's, and ErrNoEmail when
// the email value cannot be resolved.
func (m *Mapper) MapRow(row []string) (*Record, error) {
	if allBlank(row) {
		return nil, ErrBlankRow
	}
	if len(row) != len(m.header) {
		return nil, ErrRowArity
	}

	emailIdx, ok := m.bindings[FieldEmail]
	if !ok {
		return nil, ErrNoEmail
	}
	email := strings.TrimSpace(row[emailIdx])
	if email == "" {
		return nil, ErrNoEmail
	}

	rec := &Record{
		Email: email,
		Raw:   make(map[string]string, len(m.header)),
	}
	for i, h := range m.header {
		rec.Raw[strings.TrimSpace(h)] = row[i]
	}

	rec.FirstName = m.cell(row, FieldFirstName)
	rec.LastName = m.cell(row, FieldLastName)
	rec.Phone = m.cell(row, FieldPhone)
	rec.State = m.cell(row, FieldState)
	rec.BusinessName = m.cell(row, FieldBusinessName)
	rec.BusinessAddress = m.cell(row, FieldBusinessAddress)

	if tags := m.cell(row, FieldTags); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				rec.Tags = append(rec.Tags, tag)
			}
		}
	}

	return rec, nil
}

func (m *Mapper) cell(row []string, f CanonicalField) string {
	idx, ok := m.bindings[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// normalizeKey lowercases a header and strips everything that isn't a
// letter or digit.
func normalizeKey(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(key string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func allBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ValidEmail performs the same light syntax check the rest of the platform
// uses before accepting an address.
func ValidEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at >= len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || len(domain) < 3 {
		return false
	}
	return true
}
