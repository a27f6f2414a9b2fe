package tests

import (
	"testing"
	"time"

	"github.com/sitearc/docnum/app/dto"
	businessflow "github.com/sitearc/docnum/business_flow"
	"github.com/sitearc/docnum/models"
	testingutil "github.com/sitearc/docnum/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveRequest(nc *testingutil.NumberingContext) *dto.ReserveNumberRequest {
	return &dto.ReserveNumberRequest{
		GenerateNumberRequest: dto.GenerateNumberRequest{
			ProjectID:       nc.Project.ID,
			OriginatorOrgID: nc.Originator.ID,
			RecipientOrgID:  nc.Recipient.ID,
			TypeID:          nc.Type.ID,
			Year:            2025,
		},
	}
}

// expireReservation backdates a reservation so expiry behavior can be tested
// without waiting out the TTL.
func expireReservation(testDB *testingutil.TestDB, token string) error {
	return testDB.DB.Model(&models.NumberReservation{}).
		Where("token = ?", token).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error
}

func TestReservationFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		const userID = uint(7)

		t.Run("ReserveConsumesSequence", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)
			assert.NotEmpty(t, reserved.Token)
			assert.NotEmpty(t, reserved.Number)
			assert.True(t, reserved.ExpiresAt.After(time.Now().UTC()))

			// The next generation skips past the reserved sequence
			generated, err := flows.numbering.GenerateNext(ctx, &reserveRequest(nc).GenerateNumberRequest, nil, testMeta())
			require.NoError(t, err)
			assert.NotEqual(t, reserved.Number, generated.Number)
			assert.Equal(t, 2, generated.Sequence)
		})

		t.Run("ConfirmBindsDocument", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)

			docID := uint(42)
			confirmed, err := flows.reservations.Confirm(ctx, &dto.ConfirmReservationRequest{
				Token:      reserved.Token,
				DocumentID: &docID,
			}, nil, testMeta())
			require.NoError(t, err)
			assert.Equal(t, reserved.Number, confirmed.Number)

			got, err := flows.reservations.GetByToken(ctx, reserved.Token)
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusConfirmed, got.Status)
			require.NotNil(t, got.DocumentID)
			assert.Equal(t, docID, *got.DocumentID)
		})

		t.Run("ConfirmTwiceFails", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)

			_, err = flows.reservations.Confirm(ctx, &dto.ConfirmReservationRequest{Token: reserved.Token}, nil, testMeta())
			require.NoError(t, err)

			_, err = flows.reservations.Confirm(ctx, &dto.ConfirmReservationRequest{Token: reserved.Token}, nil, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeNotFound, be.Code)
		})

		t.Run("ConfirmUnknownTokenFails", func(t *testing.T) {
			_, err := flows.reservations.Confirm(ctx, &dto.ConfirmReservationRequest{
				Token: "00000000-0000-4000-8000-000000000000",
			}, nil, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeNotFound, be.Code)
		})

		t.Run("ConfirmExpiredReportsGone", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)
			require.NoError(t, expireReservation(testDB, reserved.Token))

			_, err = flows.reservations.Confirm(ctx, &dto.ConfirmReservationRequest{Token: reserved.Token}, nil, testMeta())
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeGone, be.Code)
			assert.True(t, businessflow.IsReservationExpired(err))

			// The failed confirmation cancelled the reservation
			got, err := flows.reservations.GetByToken(ctx, reserved.Token)
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusCancelled, got.Status)
		})

		t.Run("CancelIsIdempotent", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)

			reason := "no longer needed"
			cancelReq := &dto.CancelReservationRequest{Token: reserved.Token, Reason: &reason}

			require.NoError(t, flows.reservations.Cancel(ctx, cancelReq, nil, testMeta()))
			// Second cancel is a successful no-op
			require.NoError(t, flows.reservations.Cancel(ctx, cancelReq, nil, testMeta()))

			got, err := flows.reservations.GetByToken(ctx, reserved.Token)
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusCancelled, got.Status)
			require.NotNil(t, got.CancelReason)
			assert.Equal(t, reason, *got.CancelReason)
		})

		t.Run("CancelDoesNotReclaimSequence", func(t *testing.T) {
			reserved, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
			require.NoError(t, err)
			require.NoError(t, flows.reservations.Cancel(ctx, &dto.CancelReservationRequest{Token: reserved.Token}, nil, testMeta()))

			generated, err := flows.numbering.GenerateNext(ctx, &reserveRequest(nc).GenerateNumberRequest, nil, testMeta())
			require.NoError(t, err)
			assert.NotEqual(t, reserved.Number, generated.Number)
		})

		t.Run("GetByTokenNotFound", func(t *testing.T) {
			_, err := flows.reservations.GetByToken(ctx, "ffffffff-ffff-4fff-8fff-ffffffffffff")
			require.Error(t, err)

			var be *businessflow.BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, businessflow.CodeNotFound, be.Code)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReservationSweep(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flows := newTestFlows(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		nc, err := fixtures.CreateNumberingContext()
		require.NoError(t, err)

		const userID = uint(7)

		expired1, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
		require.NoError(t, err)
		expired2, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
		require.NoError(t, err)
		alive, err := flows.reservations.Reserve(ctx, reserveRequest(nc), userID, testMeta())
		require.NoError(t, err)

		require.NoError(t, expireReservation(testDB, expired1.Token))
		require.NoError(t, expireReservation(testDB, expired2.Token))

		cancelled, err := flows.reservations.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), cancelled)

		for _, token := range []string{expired1.Token, expired2.Token} {
			got, err := flows.reservations.GetByToken(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, models.ReservationStatusCancelled, got.Status)
		}

		got, err := flows.reservations.GetByToken(ctx, alive.Token)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusReserved, got.Status)

		// Sweeping again finds nothing
		cancelled, err = flows.reservations.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, cancelled)

		return nil
	})
	require.NoError(t, err)
}
