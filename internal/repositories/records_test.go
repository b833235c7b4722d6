package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"revattest/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (RecordRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRecordRepository(db), mock
}

var (
	from = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
)

func TestSaveRecords_UpsertsInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	cust := "c-1"
	records := Records{
		Orders: []models.NormalizedOrder{{
			MerchantID: "m-1", Provider: "shopify", ID: "1001",
			CreatedAt: from.Add(time.Hour), TotalPrice: 15000, Subtotal: 15000,
			LineItemCount: 2, FinancialStatus: models.StatusPaid, CustomerID: &cust, Currency: "USD",
		}},
		Refunds: []models.NormalizedRefund{{
			MerchantID: "m-1", Provider: "shopify", ID: "r-1", OrderID: "1001",
			CreatedAt: from.Add(2 * time.Hour), Amount: 2000, Currency: "USD",
		}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "normalized_orders" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "normalized_refunds" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRecords(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecords_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	records := Records{
		Customers: []models.NormalizedCustomer{{MerchantID: "m-1", Provider: "stripe", ID: "cus_1", Currency: "USD"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "normalized_customers"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveRecords(context.Background(), records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save customers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecords_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, repo.SaveRecords(context.Background(), Records{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	repo, mock := newMockRepo(t)

	orderCols := []string{"merchant_id", "provider", "id", "created_at", "total_price", "subtotal",
		"total_discounts", "line_item_count", "financial_status", "customer_id", "currency", "cancelled_at"}
	mock.ExpectQuery(`SELECT \* FROM "normalized_orders" WHERE merchant_id = \$1 AND created_at >= \$2 AND created_at < \$3`).
		WithArgs("m-1", from, to).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("m-1", "shopify", "1001", from.Add(time.Hour), int64(15000), int64(16000),
				int64(1000), 2, "paid", "c-1", "USD", nil))

	mock.ExpectQuery(`SELECT \* FROM "normalized_refunds" WHERE merchant_id = \$1`).
		WithArgs("m-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"merchant_id", "provider", "id", "created_at", "order_id", "amount", "currency", "chargeback"}).
			AddRow("m-1", "stripe", "re_1", from.Add(time.Hour), "ch_1", int64(500), "USD", true))

	mock.ExpectQuery(`SELECT \* FROM "normalized_customers" WHERE merchant_id = \$1`).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"merchant_id", "provider", "id", "created_at", "orders_count", "total_spent", "currency"}).
			AddRow("m-1", "shopify", "c-1", from, 3, int64(45000), "USD"))

	records, err := repo.Load(context.Background(), "m-1", from, to)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, records.Orders, 1)
	o := records.Orders[0]
	assert.Equal(t, int64(16000), o.Subtotal)
	assert.Equal(t, models.StatusPaid, o.FinancialStatus)
	require.NotNil(t, o.CustomerID)
	assert.Equal(t, "c-1", *o.CustomerID)
	assert.Nil(t, o.CancelledAt)

	require.Len(t, records.Refunds, 1)
	assert.True(t, records.Refunds[0].Chargeback)
	require.Len(t, records.Customers, 1)
	assert.Equal(t, 3, records.Customers[0].OrdersCount)
}

func TestOrders_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "normalized_orders"`).WillReturnError(errors.New("connection reset"))

	_, err := repo.Orders(context.Background(), "m-1", from, to)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query orders")
}
