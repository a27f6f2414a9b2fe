package tests

import (
	"strings"
	"testing"

	"github.com/sitearc/docnum/app/dto"
	businessflow "github.com/sitearc/docnum/business_flow"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/repository"
	testingutil "github.com/sitearc/docnum/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFlows bundles the wired business flows and their repositories for tests
type testFlows struct {
	counterRepo     repository.CounterRepository
	formatRepo      repository.NumberFormatRepository
	reservationRepo repository.NumberReservationRepository
	auditRepo       repository.NumberAuditRepository
	errorRepo       repository.NumberErrorRepository
	numbering       *businessflow.NumberingFlowImpl
	reservations    *businessflow.ReservationFlowImpl
	admin           *businessflow.AdminFlowImpl
}

// newTestFlows wires the full flow stack against a test database, with the
// no-op lock coordinator standing in for Redis.
func newTestFlows(testDB *testingutil.TestDB) *testFlows {
	counterRepo := repository.NewCounterRepository(testDB.DB, repository.DefaultCounterRetryPolicy())
	formatRepo := repository.NewNumberFormatRepository(testDB.DB)
	reservationRepo := repository.NewNumberReservationRepository(testDB.DB)
	auditRepo := repository.NewNumberAuditRepository(testDB.DB)
	errorRepo := repository.NewNumberErrorRepository(testDB.DB)
	codes := repository.NewCodeDirectory(testDB.DB)

	audit := businessflow.NewAuditLogger(auditRepo, errorRepo)
	resolver := businessflow.NewFormatResolver(formatRepo, codes)
	numbering := businessflow.NewNumberingFlow(counterRepo, resolver, businessflow.NewNoopLockCoordinator(), audit, 0)
	reservations := businessflow.NewReservationFlow(numbering, reservationRepo, audit, 0)
	admin := businessflow.NewAdminFlow(counterRepo, formatRepo, reservationRepo, auditRepo, errorRepo, numbering, audit)

	return &testFlows{
		counterRepo:     counterRepo,
		formatRepo:      formatRepo,
		reservationRepo: reservationRepo,
		auditRepo:       auditRepo,
		errorRepo:       errorRepo,
		numbering:       numbering,
		reservations:    reservations,
		admin:           admin,
	}
}

func testMeta() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("127.0.0.1", "docnum-tests")
}

func TestNumberingFlowGenerate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		typeID := nc.Type.ID
		_, err = fixtures.CreateTestFormat(nc.Project.ID, &typeID, "{TYPE}-{SEQ:4}-{YEAR}", true)
		require.NoError(t, err)

		req := &dto.GenerateNumberRequest{
			ProjectID:       nc.Project.ID,
			OriginatorOrgID: nc.Originator.ID,
			RecipientOrgID:  nc.Recipient.ID,
			TypeID:          nc.Type.ID,
			Year:            2025,
		}

		t.Run("SequentialNumbers", func(t *testing.T) {
			first, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, nc.Type.TypeCode+"-0001-25", first.Number)
			assert.Equal(t, 1, first.Sequence)
			assert.NotZero(t, first.AuditID)

			second, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, nc.Type.TypeCode+"-0002-25", second.Number)
			assert.Equal(t, 2, second.Sequence)
		})

		t.Run("PreviewDoesNotConsume", func(t *testing.T) {
			preview, err := flows.numbering.Preview(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, nc.Type.TypeCode+"-0003-25", preview.Number)
			assert.Equal(t, 3, preview.NextSequence)

			// A second preview returns the same number
			again, err := flows.numbering.Preview(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, preview.Number, again.Number)

			// And the real generation then issues exactly that number
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, preview.Number, generated.Number)
		})

		t.Run("YearlyResetScopesAreIndependent", func(t *testing.T) {
			nextYear := *req
			nextYear.Year = 2026

			generated, err := flows.numbering.GenerateNext(ctx, &nextYear, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, 1, generated.Sequence)
			assert.True(t, strings.HasSuffix(generated.Number, "-26"))
		})

		t.Run("AuditTrailRecordsGeneration", func(t *testing.T) {
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)

			entry, err := flows.auditRepo.LatestByNumber(ctx, generated.Number)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, models.AuditOpGenerate, entry.Operation)
			assert.True(t, entry.Success)
			require.NotNil(t, entry.Sequence)
			assert.Equal(t, generated.Sequence, *entry.Sequence)
			assert.NotEmpty(t, entry.CounterKeyJSON)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestNumberingFlowFallbacks(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		t.Run("ProjectDefaultTemplate", func(t *testing.T) {
			// No type-specific template, only the project default
			_, err := fixtures.CreateTestFormat(nc.Project.ID, nil, "{PROJECT}/{SEQ:3}", false)
			require.NoError(t, err)

			req := &dto.GenerateNumberRequest{
				ProjectID:       nc.Project.ID,
				OriginatorOrgID: nc.Originator.ID,
				TypeID:          nc.Type.ID,
			}
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, nc.Project.ProjectCode+"/001", generated.Number)
		})

		t.Run("HardcodedFallbackTemplate", func(t *testing.T) {
			// A project with no templates at all uses the built-in fallback
			other, err := fixtures.CreateTestProject("")
			require.NoError(t, err)

			req := &dto.GenerateNumberRequest{
				ProjectID:       other.ID,
				OriginatorOrgID: nc.Originator.ID,
				RecipientOrgID:  nc.Recipient.ID,
				TypeID:          nc.Type.ID,
				Year:            2025,
			}
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			// The built-in fallback renders the Buddhist-era year (2025 → 2568)
			assert.Equal(t,
				nc.Originator.OrganizationCode+"-"+nc.Recipient.OrganizationCode+"-0001-68",
				generated.Number)
		})

		t.Run("MissingMasterDataUsesSentinels", func(t *testing.T) {
			// Ids that resolve to nothing still produce a usable number
			req := &dto.GenerateNumberRequest{
				ProjectID:       88888,
				OriginatorOrgID: 88888,
				RecipientOrgID:  88889,
				TypeID:          88888,
				Year:            2025,
			}
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, "GEN-GEN-0001-68", generated.Number)
		})

		t.Run("CustomTokens", func(t *testing.T) {
			typeID := nc.Type.ID
			_, err := fixtures.CreateTestFormat(nc.Project.ID, &typeID, "{COMPANY}-{TYPE}-{SEQ:2}", false)
			require.NoError(t, err)

			req := &dto.GenerateNumberRequest{
				ProjectID:       nc.Project.ID,
				OriginatorOrgID: nc.Originator.ID,
				TypeID:          nc.Type.ID,
				CustomTokens:    map[string]string{"COMPANY": "ACME"},
			}
			// Same NONE-scoped counter as the project-default subtest above,
			// so this is the second number in that sequence.
			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, "ACME-"+nc.Type.TypeCode+"-02", generated.Number)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestNumberingFlowValidation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		ctx := testingutil.CreateTestContext()

		cases := []struct {
			name string
			req  *dto.GenerateNumberRequest
		}{
			{"MissingProject", &dto.GenerateNumberRequest{OriginatorOrgID: 1, TypeID: 1}},
			{"MissingOriginator", &dto.GenerateNumberRequest{ProjectID: 1, TypeID: 1}},
			{"MissingType", &dto.GenerateNumberRequest{ProjectID: 1, OriginatorOrgID: 1}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := flows.numbering.GenerateNext(ctx, tc.req, nil, testMeta())
				require.Error(t, err)

				var be *businessflow.BusinessError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, businessflow.CodeValidation, be.Code)
			})
		}

		return nil
	})
	require.NoError(t, err)
}
