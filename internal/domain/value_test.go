package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/postbook/internal/domain"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestIdentifier(t *testing.T) {
	if r := domain.NewIdentifier(uuid.Nil); r.IsSuccess() {
		t.Fatal("nil UUID must be rejected")
	}
	if r := domain.ParseIdentifier("not-a-uuid"); r.IsSuccess() {
		t.Fatal("malformed text must be rejected")
	}

	a, b := domain.GenerateIdentifier(), domain.GenerateIdentifier()
	if a.IsZero() || a == b {
		t.Fatalf("generated identifiers must be non-zero and distinct: %s %s", a, b)
	}
	parsed := domain.ParseIdentifier(a.String())
	if parsed.IsError() || parsed.Value() != a {
		t.Fatalf("round trip through text failed: %s", parsed)
	}
}

func TestNewTitle(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"trimmed", "  Hello World  ", "Hello World", true},
		{"digits", "Top 10", "Top 10", true},
		{"unicode letters", "Café del Mar", "Café del Mar", true},
		{"empty", "   ", "", false},
		{"punctuation", "Hello!", "", false},
		{"at limit", strings.Repeat("a", domain.MaxTitleLength), strings.Repeat("a", domain.MaxTitleLength), true},
		{"over limit", strings.Repeat("a", domain.MaxTitleLength+1), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := domain.NewTitle(tt.raw)
			if r.IsSuccess() != tt.valid {
				t.Fatalf("NewTitle(%q) = %s", tt.raw, r)
			}
			if !tt.valid {
				if code, _ := r.Code(); code != domain.InvalidInput || len(r.Errors()) != 1 {
					t.Fatalf("expected one InvalidInput error, got %v", r.Errors())
				}
				return
			}
			if r.Value().String() != tt.want {
				t.Fatalf("got %q, want %q", r.Value(), tt.want)
			}
		})
	}
}

func TestNewBodyAndCommentBody(t *testing.T) {
	if r := domain.NewBody(strings.Repeat("x", domain.MaxBodyLength)); r.IsError() {
		t.Fatalf("body at limit rejected: %s", r)
	}
	if r := domain.NewBody(strings.Repeat("x", domain.MaxBodyLength+1)); r.IsSuccess() {
		t.Fatal("body over limit accepted")
	}
	if r := domain.NewBody("\n\t "); r.IsSuccess() {
		t.Fatal("blank body accepted")
	}
	if r := domain.NewCommentBody(strings.Repeat("x", domain.MaxCommentBodyLength+1)); r.IsSuccess() {
		t.Fatal("comment over limit accepted")
	}
	if a, b := domain.NewBody(" same "), domain.NewBody("same"); a.Value() != b.Value() {
		t.Fatal("equal trimmed bodies must compare equal")
	}
}

func TestParseGender(t *testing.T) {
	for _, raw := range []string{"male", "MALE", " Male "} {
		if r := domain.ParseGender(raw); r.Value() != domain.GenderMale {
			t.Fatalf("ParseGender(%q) = %s", raw, r)
		}
	}
	if r := domain.ParseGender("other"); r.IsSuccess() {
		t.Fatal("unknown gender accepted")
	}
}

func validInfo() domain.BasicInformationInput {
	return domain.BasicInformationInput{
		FirstName:   "Alice",
		LastName:    "Smith",
		City:        "Lisbon",
		DateOfBirth: time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "female",
	}
}

func TestNewBasicInformation_Valid(t *testing.T) {
	r := domain.NewBasicInformation(validInfo(), now)
	if r.IsError() {
		t.Fatalf("unexpected failure: %s", r)
	}
	info := r.Value()
	if info.FirstName() != "Alice" || info.Gender() != domain.GenderFemale || info.Address() != "" {
		t.Fatalf("unexpected fields: %+v", info)
	}
}

func TestNewBasicInformation_AgeBoundsAreInclusive(t *testing.T) {
	tests := []struct {
		name  string
		dob   time.Time
		valid bool
	}{
		{"eighteen today", now.AddDate(-18, 0, 0), true},
		{"eighteen tomorrow", now.AddDate(-18, 0, 1), false},
		{"one hundred twenty five", now.AddDate(-125, 0, 0), true},
		{"one hundred twenty six", now.AddDate(-126, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInfo()
			in.DateOfBirth = tt.dob
			if r := domain.NewBasicInformation(in, now); r.IsSuccess() != tt.valid {
				t.Fatalf("dob %s: %s", tt.dob.Format(time.DateOnly), r)
			}
		})
	}
}

func TestNewBasicInformation_ReportsEveryViolation(t *testing.T) {
	in := domain.BasicInformationInput{
		FirstName: " ",
		LastName:  strings.Repeat("b", domain.MaxNameLength+1),
		Address:   strings.Repeat("c", domain.MaxAddressLength+1),
		City:      strings.Repeat("d", domain.MaxCityLength+1),
		Gender:    "unknown",
	}
	r := domain.NewBasicInformation(in, now)
	errs := r.Errors()
	if len(errs) != 6 {
		t.Fatalf("expected 6 errors, got %d: %v", len(errs), errs)
	}
	for _, e := range errs {
		if e.Code != domain.InvalidInput {
			t.Fatalf("expected InvalidInput, got %s", e.Code)
		}
	}
}

func TestRestorePost_NullColumnsUseDefaults(t *testing.T) {
	rec := domain.PostRecord{
		ID:            domain.GenerateIdentifier().String(),
		UserProfileID: domain.GenerateIdentifier().String(),
		CreatedAt:     now,
		UpdatedAt:     now.Add(time.Hour),
	}
	r := domain.RestorePost(rec)
	if r.IsError() {
		t.Fatalf("restore failed: %s", r)
	}
	if r.Value().Title != domain.DefaultTitle || r.Value().Body != domain.DefaultBody {
		t.Fatalf("expected defaults, got %+v", r.Value())
	}
	if !r.Value().UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Fatal("restore must keep stored timestamps")
	}

	bad := "not valid!"
	rec.Title = &bad
	if r := domain.RestorePost(rec); r.IsSuccess() {
		t.Fatal("an invalid stored title must surface as an error")
	}

	rec.Title = nil
	rec.ID = ""
	if r := domain.RestorePost(rec); r.IsSuccess() {
		t.Fatal("a missing id must surface as an error")
	}
}

func TestNewPostAndComment(t *testing.T) {
	title := domain.NewTitle("Hello").Value()
	body := domain.NewBody("World").Value()
	if r := domain.NewPost(domain.Identifier{}, title, body, "", now); r.IsSuccess() {
		t.Fatal("a post needs an owner")
	}
	post := domain.NewPost(domain.GenerateIdentifier(), title, body, "", now)
	if post.IsError() || !post.Value().CreatedAt.Equal(post.Value().UpdatedAt) {
		t.Fatalf("new post must start with equal timestamps: %s", post)
	}

	comment := domain.NewPostComment(post.Value().ID, domain.Identifier{}, domain.NewCommentBody("hi").Value(), now)
	if comment.IsSuccess() {
		t.Fatal("a comment needs an author")
	}
}

func TestRefreshToken_IsUsable(t *testing.T) {
	token := domain.RefreshToken{ExpiryDate: now.Add(time.Hour)}
	if !token.IsUsable(now) {
		t.Fatal("fresh token must be usable")
	}
	if token.IsUsable(now.Add(time.Hour)) {
		t.Fatal("token must be unusable at its expiry instant")
	}
	used := token
	used.IsUsed = true
	revoked := token
	revoked.IsRevoked = true
	if used.IsUsable(now) || revoked.IsUsable(now) {
		t.Fatal("used or revoked tokens must be unusable")
	}
}
