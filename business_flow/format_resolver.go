package businessflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/sitearc/docnum/app/dto"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	"github.com/sitearc/docnum/utils"
)

// tokenPattern matches one template token: a name plus an optional argument,
// e.g. {ORG}, {SEQ:4}, {YEAR:BE}.
var tokenPattern = regexp.MustCompile(`\{([A-Z][A-Z0-9_]*)(?::([A-Z0-9]+))?\}`)

// ResolvedFormat is the outcome of template resolution for one generation
// context. The reset scope is fixed here because it is part of the counter
// identity and must be decided before the counter is touched.
type ResolvedFormat struct {
	Template    string
	ResetYearly bool
	Year        int
	ResetScope  string
}

// FormatResolver turns a sequence number plus contextual lookups into the
// final document number string.
type FormatResolver struct {
	formatRepo repository.NumberFormatRepository
	codes      repository.CodeDirectory
}

// NewFormatResolver creates a new format resolver
func NewFormatResolver(formatRepo repository.NumberFormatRepository, codes repository.CodeDirectory) *FormatResolver {
	return &FormatResolver{formatRepo: formatRepo, codes: codes}
}

// Resolve picks the template for the request following the fallback order:
// exact (project, type) match, then project-wide default, then the hard-coded
// fallback. It also fixes the effective year and reset scope.
func (f *FormatResolver) Resolve(ctx context.Context, req *dto.GenerateNumberRequest) (ResolvedFormat, error) {
	template := models.FallbackTemplate
	resetYearly := true

	format, err := f.formatRepo.Resolve(ctx, req.ProjectID, req.TypeID)
	if err != nil {
		return ResolvedFormat{}, fmt.Errorf("failed to resolve numbering template: %w", err)
	}
	if format != nil {
		template = format.FormatTemplate
		resetYearly = format.ResetSequenceYearly
	}

	year := req.Year
	if year == 0 {
		year = utils.UTCNow().Year()
	}

	scope := models.ResetScopeNone
	if resetYearly {
		scope = models.YearScope(year)
	}

	return ResolvedFormat{
		Template:    template,
		ResetYearly: resetYearly,
		Year:        year,
		ResetScope:  scope,
	}, nil
}

// Render substitutes every token in the resolved template in a single pass.
// A custom token overrides the built-in of the same name; substituted values
// are never rescanned, so token-shaped text inside a custom value stays
// literal. Unknown tokens pass through unchanged.
func (f *FormatResolver) Render(ctx context.Context, rf ResolvedFormat, req *dto.GenerateNumberRequest, sequence int) string {
	builtins := f.builtinTokens(ctx, req, rf.Year)

	return tokenPattern.ReplaceAllStringFunc(rf.Template, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		name, arg := groups[1], groups[2]

		if value, ok := req.CustomTokens[name]; ok && arg == "" {
			return value
		}
		if name == "SEQ" {
			width := 0
			if arg != "" {
				width, _ = strconv.Atoi(arg)
			}
			return fmt.Sprintf("%0*d", width, sequence)
		}
		if value, ok := builtins[match]; ok {
			return value
		}
		return match
	})
}

// builtinTokens resolves the contextual token values. Lookup misses substitute
// a fixed sentinel so a half-configured project still yields a usable number.
func (f *FormatResolver) builtinTokens(ctx context.Context, req *dto.GenerateNumberRequest, year int) map[string]string {
	return map[string]string{
		"{PROJECT}":    f.lookupOr(ctx, f.codes.ProjectCode, req.ProjectID, utils.MissingProjectSentinel),
		"{TYPE}":       f.lookupOr(ctx, f.codes.TypeCode, req.TypeID, utils.MissingTypeSentinel),
		"{ORG}":        f.lookupOr(ctx, f.codes.OrganizationCode, req.OriginatorOrgID, utils.MissingCodeSentinel),
		"{RECIPIENT}":  f.lookupOr(ctx, f.codes.OrganizationCode, req.RecipientOrgID, utils.MissingCodeSentinel),
		"{DISCIPLINE}": f.lookupOr(ctx, f.codes.DisciplineCode, req.DisciplineID, utils.MissingCodeSentinel),
		"{YEAR}":       shortYear(year),
		"{YEAR:BE}":    shortYear(year + 543),
		"{REV}":        "0",
	}
}

func (f *FormatResolver) lookupOr(ctx context.Context, lookup func(context.Context, uint) (string, bool), id uint, sentinel string) string {
	if code, ok := lookup(ctx, id); ok {
		return code
	}
	return sentinel
}

// shortYear renders the two trailing digits of a year, matching the
// convention of construction correspondence numbers.
func shortYear(year int) string {
	s := strconv.Itoa(year)
	if len(s) > 2 {
		return s[len(s)-2:]
	}
	return s
}
