package ingest

import (
	"errors"
	"testing"
)

func TestNewMapperBindings(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		field  CanonicalField
		want   string // value pulled from the row below, "" means unbound
		row    []string
	}{
		{"plain email", []string{"Email", "Name"}, FieldEmail, "a@x.com", []string{"a@x.com", "Ann"}},
		{"email substring", []string{"Subscriber E-Mail Address", "Name"}, FieldEmail, "a@x.com", []string{"a@x.com", "Ann"}},
		{"fname wins", []string{"email", "fname"}, FieldFirstName, "Ann", []string{"a@x.com", "Ann"}},
		{"first name spaced", []string{"email", "First Name"}, FieldFirstName, "Ann", []string{"a@x.com", "Ann"}},
		{"phone", []string{"email", "Mobile Number"}, FieldPhone, "555-1", []string{"a@x.com", "555-1"}},
		{"company", []string{"email", "Company Name"}, FieldBusinessName, "Acme", []string{"a@x.com", "Acme"}},
		{"org", []string{"email", "Organization"}, FieldBusinessName, "Acme", []string{"a@x.com", "Acme"}},
		{"address", []string{"email", "Street Address"}, FieldBusinessAddress, "1 Main St", []string{"a@x.com", "1 Main St"}},
		{"tags", []string{"email", "Tag List"}, FieldTags, "vip", []string{"a@x.com", "vip"}},
		{"state", []string{"email", "State/Province"}, FieldState, "CA", []string{"a@x.com", "CA"}},
		// First matching column wins; later columns are ignored.
		{"first column wins", []string{"email", "fname", "first_name"}, FieldFirstName, "Ann", []string{"a@x.com", "Ann", "Other"}},
		// Deliberately permissive: substring rules over-match and that is
		// the documented behavior, not a bug.
		{"permissive first", []string{"email", "first_approval_date"}, FieldFirstName, "2021-01-01", []string{"a@x.com", "2021-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(tt.header)
			rec, err := m.MapRow(tt.row)
			if err != nil {
				t.Fatalf("MapRow error: %v", err)
			}
			got := map[CanonicalField]string{
				FieldEmail:           rec.Email,
				FieldFirstName:       rec.FirstName,
				FieldPhone:           rec.Phone,
				FieldState:           rec.State,
				FieldBusinessName:    rec.BusinessName,
				FieldBusinessAddress: rec.BusinessAddress,
			}[tt.field]
			if tt.field == FieldTags {
				if len(rec.Tags) == 0 || rec.Tags[0] != tt.want {
					t.Errorf("tags = %v, want first %q", rec.Tags, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestMapperEmailFallback(t *testing.T) {
	// "email_address" normalizes to "emailaddress" which also fragment
	// matches, so force the exact-key path with a header that only the
	// fallback set can claim.
	m := NewMapper([]string{"Email", "junk"})
	if !m.EmailResolved() {
		t.Fatal("exact fallback key 'Email' not resolved")
	}

	m = NewMapper([]string{"contact", "junk"})
	if m.EmailResolved() {
		t.Fatal("header without email resolved unexpectedly")
	}
	_, err := m.MapRow([]string{"a@x.com", "x"})
	if !errors.Is(err, ErrNoEmail) {
		t.Errorf("MapRow = %v, want ErrNoEmail", err)
	}
}

func TestMapRowArity(t *testing.T) {
	m := NewMapper([]string{"email", "first", "phone"})
	_, err := m.MapRow([]string{"bad-row-too-few-cols"})
	if !errors.Is(err, ErrRowArity) {
		t.Errorf("MapRow = %v, want ErrRowArity", err)
	}
}

func TestMapRowBlank(t *testing.T) {
	m := NewMapper([]string{"email", "first"})
	for _, row := range [][]string{{"", ""}, {"  ", "\t"}} {
		_, err := m.MapRow(row)
		if !errors.Is(err, ErrBlankRow) {
			t.Errorf("MapRow(%v) = %v, want ErrBlankRow", row, err)
		}
	}
}

func TestMapRowEmptyEmailCell(t *testing.T) {
	m := NewMapper([]string{"email", "first"})
	_, err := m.MapRow([]string{"   ", "Ann"})
	if !errors.Is(err, ErrNoEmail) {
		t.Errorf("MapRow = %v, want ErrNoEmail", err)
	}
}

func TestMapRowRawPayload(t *testing.T) {
	m := NewMapper([]string{"Email", "First Name", "Extra Col"})
	rec, err := m.MapRow([]string{"a@x.com", "Ann", "whatever"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Raw["Extra Col"] != "whatever" {
		t.Errorf("raw payload missing unmapped column: %v", rec.Raw)
	}
	if rec.Raw["Email"] != "a@x.com" {
		t.Errorf("raw payload missing email column: %v", rec.Raw)
	}
}

func TestMapRowTagsSplit(t *testing.T) {
	m := NewMapper([]string{"email", "tags"})
	rec, err := m.MapRow([]string{"a@x.com", "vip, new , "})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "vip" || rec.Tags[1] != "new" {
		t.Errorf("tags = %v", rec.Tags)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"First Name":      "firstname",
		"E-Mail_Address":  "emailaddress",
		" PHONE # ":       "phone",
		"business  name!": "businessname",
	}
	for in, want := range tests {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@x.com", "first.last@sub.example.org"}
	invalid := []string{"", "a@b", "no-at-sign", "@x.com", "a@"}
	for _, e := range valid {
		if !ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = false", e)
		}
	}
	for _, e := range invalid {
		if ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = true", e)
		}
	}
}
