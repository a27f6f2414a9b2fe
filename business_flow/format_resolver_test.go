package businessflow

import (
	"context"
	"testing"

	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFormatRepo serves a single canned template, or nothing.
type fakeFormatRepo struct {
	format *models.NumberFormat
}

func (f *fakeFormatRepo) ByID(ctx context.Context, id uint) (*models.NumberFormat, error) {
	return f.format, nil
}
func (f *fakeFormatRepo) Save(ctx context.Context, entity *models.NumberFormat) error { return nil }
func (f *fakeFormatRepo) SaveBatch(ctx context.Context, entities []*models.NumberFormat) error {
	return nil
}
func (f *fakeFormatRepo) Resolve(ctx context.Context, projectID, typeID uint) (*models.NumberFormat, error) {
	return f.format, nil
}
func (f *fakeFormatRepo) ListAll(ctx context.Context) ([]*models.NumberFormat, error) {
	return nil, nil
}
func (f *fakeFormatRepo) ListByProject(ctx context.Context, projectID uint) ([]*models.NumberFormat, error) {
	return nil, nil
}
func (f *fakeFormatRepo) Upsert(ctx context.Context, format *models.NumberFormat) error { return nil }
func (f *fakeFormatRepo) Delete(ctx context.Context, id uint) error                     { return nil }

// fakeCodeDirectory resolves ids from fixed maps; absent ids miss.
type fakeCodeDirectory struct {
	projects    map[uint]string
	orgs        map[uint]string
	types       map[uint]string
	disciplines map[uint]string
}

func (f *fakeCodeDirectory) lookup(m map[uint]string, id uint) (string, bool) {
	code, ok := m[id]
	return code, ok
}
func (f *fakeCodeDirectory) ProjectCode(ctx context.Context, id uint) (string, bool) {
	return f.lookup(f.projects, id)
}
func (f *fakeCodeDirectory) OrganizationCode(ctx context.Context, id uint) (string, bool) {
	return f.lookup(f.orgs, id)
}
func (f *fakeCodeDirectory) TypeCode(ctx context.Context, id uint) (string, bool) {
	return f.lookup(f.types, id)
}
func (f *fakeCodeDirectory) DisciplineCode(ctx context.Context, id uint) (string, bool) {
	return f.lookup(f.disciplines, id)
}

func newTestResolver(template string, resetYearly bool) *FormatResolver {
	var format *models.NumberFormat
	if template != "" {
		format = &models.NumberFormat{
			FormatTemplate:      template,
			ResetSequenceYearly: resetYearly,
		}
	}
	codes := &fakeCodeDirectory{
		projects:    map[uint]string{1: "P001"},
		orgs:        map[uint]string{1: "OWNER", 2: "CONTR"},
		types:       map[uint]string{1: "COR", 2: "RFA"},
		disciplines: map[uint]string{1: "CIV"},
	}
	return NewFormatResolver(&fakeFormatRepo{format: format}, codes)
}

func baseRequest() *dto.GenerateNumberRequest {
	return &dto.GenerateNumberRequest{
		ProjectID:       1,
		OriginatorOrgID: 1,
		RecipientOrgID:  2,
		TypeID:          1,
		DisciplineID:    1,
		Year:            2025,
	}
}

func TestFormatResolverRender(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		template string
		sequence int
		want     string
	}{
		{"AllBuiltinTokens", "{PROJECT}-{ORG}-{RECIPIENT}-{TYPE}-{DISCIPLINE}-{SEQ:4}-{YEAR}", 42, "P001-OWNER-CONTR-COR-CIV-0042-25"},
		{"PaddingWidth", "{SEQ:6}", 7, "000007"},
		{"NoPadding", "{SEQ}", 7, "7"},
		{"SequenceWiderThanPadding", "{SEQ:2}", 12345, "12345"},
		{"BuddhistEraYear", "{TYPE}-{SEQ:3}/{YEAR:BE}", 5, "COR-005/68"},
		{"RevisionToken", "{TYPE}-{SEQ:4}-R{REV}", 9, "COR-0009-R0"},
		{"LiteralTextPreserved", "DOC.{SEQ:3}.FINAL", 1, "DOC.001.FINAL"},
		{"UnknownTokenLeftAsIs", "{WHAT}-{SEQ:2}", 3, "{WHAT}-03"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := newTestResolver(tc.template, true)
			rf, err := resolver.Resolve(ctx, baseRequest())
			require.NoError(t, err)
			assert.Equal(t, tc.want, resolver.Render(ctx, rf, baseRequest(), tc.sequence))
		})
	}
}

func TestFormatResolverSentinels(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver("{PROJECT}-{ORG}-{TYPE}-{DISCIPLINE}-{SEQ:2}", true)

	// Ids that resolve to nothing substitute the fixed sentinels
	req := &dto.GenerateNumberRequest{
		ProjectID:       99,
		OriginatorOrgID: 99,
		TypeID:          99,
		DisciplineID:    99,
		Year:            2025,
	}
	rf, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-GEN-DOC-GEN-01", resolver.Render(ctx, rf, req, 1))
}

func TestFormatResolverCustomTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("CustomTokenSubstituted", func(t *testing.T) {
		resolver := newTestResolver("{CONTRACT}-{SEQ:3}", false)
		req := baseRequest()
		req.CustomTokens = map[string]string{"CONTRACT": "C-778"}

		rf, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "C-778-004", resolver.Render(ctx, rf, req, 4))
	})

	t.Run("CustomTokenOverridesBuiltin", func(t *testing.T) {
		resolver := newTestResolver("{ORG}-{SEQ:3}", false)
		req := baseRequest()
		req.CustomTokens = map[string]string{"ORG": "SPECIAL"}

		rf, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "SPECIAL-010", resolver.Render(ctx, rf, req, 10))
	})

	t.Run("CustomValueStaysLiteral", func(t *testing.T) {
		// A token-shaped string inside a custom value is not expanded further
		resolver := newTestResolver("{NOTE}-{SEQ:2}", false)
		req := baseRequest()
		req.CustomTokens = map[string]string{"NOTE": "{UNKNOWN}"}

		rf, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "{UNKNOWN}-05", resolver.Render(ctx, rf, req, 5))
	})

	t.Run("BuiltinShapedCustomValueStaysLiteral", func(t *testing.T) {
		// Even a value that names a real built-in token is not expanded
		resolver := newTestResolver("{NOTE}-{SEQ:2}", false)
		req := baseRequest()
		req.CustomTokens = map[string]string{"NOTE": "{ORG}"}

		rf, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "{ORG}-05", resolver.Render(ctx, rf, req, 5))
	})
}

func TestFormatResolverScope(t *testing.T) {
	ctx := context.Background()

	t.Run("YearlyResetUsesYearScope", func(t *testing.T) {
		resolver := newTestResolver("{SEQ:4}", true)
		rf, err := resolver.Resolve(ctx, baseRequest())
		require.NoError(t, err)
		assert.Equal(t, models.YearScope(2025), rf.ResetScope)
		assert.Equal(t, 2025, rf.Year)
	})

	t.Run("NonResettingUsesNoneScope", func(t *testing.T) {
		resolver := newTestResolver("{SEQ:4}", false)
		rf, err := resolver.Resolve(ctx, baseRequest())
		require.NoError(t, err)
		assert.Equal(t, models.ResetScopeNone, rf.ResetScope)
	})

	t.Run("FallbackTemplateWhenNothingConfigured", func(t *testing.T) {
		resolver := newTestResolver("", false)
		rf, err := resolver.Resolve(ctx, baseRequest())
		require.NoError(t, err)
		assert.Equal(t, models.FallbackTemplate, rf.Template)
		// The fallback resets yearly
		assert.Equal(t, models.YearScope(2025), rf.ResetScope)
	})
}
