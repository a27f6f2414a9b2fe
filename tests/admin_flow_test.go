package tests

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sitearc/docnum/app/dto"
	businessflow "github.com/sitearc/docnum/business_flow"
	"github.com/sitearc/docnum/models"
	testingutil "github.com/sitearc/docnum/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func adminCounterKey(nc *testingutil.NumberingContext, scope string) dto.CounterKeyDTO {
	return dto.CounterKeyDTO{
		ProjectID:       nc.Project.ID,
		OriginatorOrgID: nc.Originator.ID,
		RecipientOrgID:  nc.Recipient.ID,
		TypeID:          nc.Type.ID,
		ResetScope:      scope,
	}
}

func TestAdminManualOverride(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		adminID := uint(1)

		t.Run("OverrideMovesCounter", func(t *testing.T) {
			// Issue a few numbers first so the counter exists
			req := &reserveRequest(nc).GenerateNumberRequest
			for i := 0; i < 3; i++ {
				_, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
				require.NoError(t, err)
			}

			key := adminCounterKey(nc, models.YearScope(2025))
			err := flows.admin.ManualOverride(ctx, &dto.ManualOverrideRequest{
				CounterKeyDTO: key,
				NewLastNumber: 99,
				Reason:        "legacy records end at 99",
			}, &adminID, testMeta())
			require.NoError(t, err)

			generated, err := flows.numbering.GenerateNext(ctx, req, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, 100, generated.Sequence)
		})

		t.Run("OverrideRequiresReason", func(t *testing.T) {
			err := flows.admin.ManualOverride(ctx, &dto.ManualOverrideRequest{
				CounterKeyDTO: adminCounterKey(nc, models.ResetScopeNone),
				NewLastNumber: 5,
				Reason:        "   ",
			}, &adminID, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeValidation, be.Code)
		})

		t.Run("OverrideIsAudited", func(t *testing.T) {
			audits, err := flows.auditRepo.ListByOperation(ctx, models.AuditOpManualOverride, 10, 0)
			require.NoError(t, err)
			require.NotEmpty(t, audits)

			entry := audits[0]
			require.NotNil(t, entry.NewValue)
			assert.Equal(t, "99", *entry.NewValue)
			require.NotNil(t, entry.UserID)
			assert.Equal(t, adminID, *entry.UserID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminVoidAndReplace(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		adminID := uint(1)
		genReq := &reserveRequest(nc).GenerateNumberRequest

		t.Run("VoidWithReplacement", func(t *testing.T) {
			generated, err := flows.numbering.GenerateNext(ctx, genReq, nil, testMeta())
			require.NoError(t, err)

			resp, err := flows.admin.VoidAndReplace(ctx, &dto.VoidAndReplaceRequest{
				Number:  generated.Number,
				Reason:  "issued against the wrong recipient",
				Replace: true,
			}, &adminID, testMeta())
			require.NoError(t, err)

			assert.Equal(t, generated.Number, resp.VoidedNumber)
			assert.Equal(t, models.ReservationStatusVoid, resp.Status)
			require.NotNil(t, resp.ReplacementNumber)
			assert.NotEqual(t, generated.Number, *resp.ReplacementNumber)

			// The replacement came from the same sequence
			assert.Equal(t, generated.Sequence+1, func() int {
				entry, err := flows.auditRepo.LatestByNumber(ctx, *resp.ReplacementNumber)
				require.NoError(t, err)
				require.NotNil(t, entry)
				require.NotNil(t, entry.Sequence)
				return *entry.Sequence
			}())
		})

		t.Run("VoidWithoutReplacement", func(t *testing.T) {
			generated, err := flows.numbering.GenerateNext(ctx, genReq, nil, testMeta())
			require.NoError(t, err)

			resp, err := flows.admin.VoidAndReplace(ctx, &dto.VoidAndReplaceRequest{
				Number: generated.Number,
				Reason: "duplicate submission",
			}, &adminID, testMeta())
			require.NoError(t, err)
			assert.Nil(t, resp.ReplacementNumber)
		})

		t.Run("VoidReservedNumberVoidsReservation", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), 7, testMeta())
			require.NoError(t, err)

			_, err = flows.admin.VoidAndReplace(ctx, &dto.VoidAndReplaceRequest{
				Number: reserved.Number,
				Reason: "wrong discipline",
			}, &adminID, testMeta())
			require.NoError(t, err)

			got, err := flows.reservations.GetByToken(ctx, reserved.Token)
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusVoid, got.Status)
		})

		t.Run("UnknownNumberFails", func(t *testing.T) {
			_, err := flows.admin.VoidAndReplace(ctx, &dto.VoidAndReplaceRequest{
				Number: "NOPE-9999-99",
				Reason: "testing",
			}, &adminID, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeNotFound, be.Code)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminCancelNumber(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		adminID := uint(1)

		reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), 7, testMeta())
		require.NoError(t, err)

		err = flows.admin.CancelNumber(ctx, &dto.CancelNumberRequest{
			Number: reserved.Number,
			Reason: "document never filed",
		}, &adminID, testMeta())
		require.NoError(t, err)

		got, err := flows.reservations.GetByToken(ctx, reserved.Token)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, got.Status)

		audits, err := flows.auditRepo.ListByOperation(ctx, models.AuditOpCancel, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, audits)
		require.NotNil(t, audits[0].GeneratedNumber)
		assert.Equal(t, reserved.Number, *audits[0].GeneratedNumber)

		return nil
	})
	require.NoError(t, err)
}

func TestAdminBulkImport(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		adminID := uint(1)

		t.Run("JSONImport", func(t *testing.T) {
			resp, err := flows.admin.BulkImport(ctx, &dto.BulkImportRequest{
				Entries: []dto.BulkImportEntry{
					{CounterKeyDTO: adminCounterKey(nc, models.YearScope(2024)), LastNumber: 812},
					{CounterKeyDTO: adminCounterKey(nc, models.YearScope(2025)), LastNumber: 44},
				},
			}, &adminID, testMeta())
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Imported)

			// The imported counters seed subsequent generations
			generated, err := flows.numbering.GenerateNext(ctx, &reserveRequest(nc).GenerateNumberRequest, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, 45, generated.Sequence)
		})

		t.Run("EmptyImportFails", func(t *testing.T) {
			_, err := flows.admin.BulkImport(ctx, &dto.BulkImportRequest{}, &adminID, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeValidation, be.Code)
		})

		t.Run("XLSXImport", func(t *testing.T) {
			workbook := excelize.NewFile()
			sheet := workbook.GetSheetName(0)

			header := []any{
				"project_id", "originator_organization_id", "recipient_organization_id",
				"correspondence_type_id", "sub_type_id", "rfa_type_id", "discipline_id",
				"reset_scope", "last_number",
			}
			require.NoError(t, workbook.SetSheetRow(sheet, "A1", &header))

			row := []any{
				fmt.Sprint(nc.Project.ID), fmt.Sprint(nc.Originator.ID), "0",
				fmt.Sprint(nc.Type.ID), "0", "0", "0",
				"NONE", "321",
			}
			require.NoError(t, workbook.SetSheetRow(sheet, "A2", &row))

			var buf bytes.Buffer
			require.NoError(t, workbook.Write(&buf))

			resp, err := flows.admin.BulkImportFromXLSX(ctx, &buf, &adminID, testMeta())
			require.NoError(t, err)
			assert.Equal(t, 1, resp.Imported)

			counter, err := flows.counterRepo.PeekCurrent(ctx, models.CounterKey{
				ProjectID:       nc.Project.ID,
				OriginatorOrgID: nc.Originator.ID,
				TypeID:          nc.Type.ID,
				ResetScope:      models.ResetScopeNone,
			})
			require.NoError(t, err)
			assert.Equal(t, 321, counter)
		})

		t.Run("XLSXRejectsBadHeader", func(t *testing.T) {
			workbook := excelize.NewFile()
			sheet := workbook.GetSheetName(0)
			header := []any{"wrong", "columns"}
			require.NoError(t, workbook.SetSheetRow(sheet, "A1", &header))
			row := []any{"1", "2"}
			require.NoError(t, workbook.SetSheetRow(sheet, "A2", &row))

			var buf bytes.Buffer
			require.NoError(t, workbook.Write(&buf))

			_, err := flows.admin.BulkImportFromXLSX(ctx, &buf, &adminID, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeValidation, be.Code)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdminTemplatesAndLogs(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		t.Run("SaveAndListTemplates", func(t *testing.T) {
			typeID := nc.Type.ID
			saved, err := flows.admin.SaveTemplate(ctx, &dto.SaveTemplateRequest{
				ProjectID:      nc.Project.ID,
				TypeID:         &typeID,
				FormatTemplate: "{PROJECT}-{TYPE}-{SEQ:4}-{YEAR}",
			})
			require.NoError(t, err)
			assert.NotZero(t, saved.ID)
			assert.True(t, saved.ResetSequenceYearly)

			// Default template for the same project
			_, err = flows.admin.SaveTemplate(ctx, &dto.SaveTemplateRequest{
				ProjectID:      nc.Project.ID,
				FormatTemplate: "{ORG}-{SEQ:5}",
			})
			require.NoError(t, err)

			templates, err := flows.admin.ListTemplates(ctx, nc.Project.ID)
			require.NoError(t, err)
			assert.Len(t, templates, 2)
		})

		t.Run("SaveTemplateReplacesExisting", func(t *testing.T) {
			typeID := nc.Type.ID
			saved, err := flows.admin.SaveTemplate(ctx, &dto.SaveTemplateRequest{
				ProjectID:      nc.Project.ID,
				TypeID:         &typeID,
				FormatTemplate: "{TYPE}/{SEQ:6}",
			})
			require.NoError(t, err)
			assert.Equal(t, "{TYPE}/{SEQ:6}", saved.FormatTemplate)

			// Re-saving the NULL-type project default replaces it too
			replacedDefault, err := flows.admin.SaveTemplate(ctx, &dto.SaveTemplateRequest{
				ProjectID:      nc.Project.ID,
				FormatTemplate: "{ORG}-{SEQ:3}",
			})
			require.NoError(t, err)
			assert.Equal(t, "{ORG}-{SEQ:3}", replacedDefault.FormatTemplate)

			templates, err := flows.admin.ListTemplates(ctx, nc.Project.ID)
			require.NoError(t, err)
			assert.Len(t, templates, 2)
		})

		t.Run("DeleteTemplate", func(t *testing.T) {
			templates, err := flows.admin.ListTemplates(ctx, nc.Project.ID)
			require.NoError(t, err)
			require.NotEmpty(t, templates)

			require.NoError(t, flows.admin.DeleteTemplate(ctx, templates[0].ID))

			err = flows.admin.DeleteTemplate(ctx, templates[0].ID)
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeNotFound, be.Code)
		})

		t.Run("ListCounters", func(t *testing.T) {
			_, err := flows.numbering.GenerateNext(ctx, &reserveRequest(nc).GenerateNumberRequest, nil, testMeta())
			require.NoError(t, err)

			counters, err := flows.admin.ListCounters(ctx, nc.Project.ID)
			require.NoError(t, err)
			require.NotEmpty(t, counters)
			assert.Equal(t, nc.Project.ID, counters[0].ProjectID)
		})

		t.Run("Logs", func(t *testing.T) {
			logs, err := flows.admin.Logs(ctx, 50)
			require.NoError(t, err)
			assert.NotEmpty(t, logs.Audit)
		})

		return nil
	})
	require.NoError(t, err)
}
