package settlement

import (
	"context"
	"testing"

	"sosseats/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	repo *GormRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	sqlDB, mock, err := sqlmock.New()
	s.Require().NoError(err)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	s.Require().NoError(err)
	s.mock = mock
	s.repo = NewRepository(gdb)
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *RepositoryTestSuite) TestFindOrderByPaymentMiss() {
	s.mock.ExpectQuery(`SELECT \* FROM "orders" WHERE transaction_hash = \$1 AND event_id = \$2 AND payment_method = \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	order, err := s.repo.FindOrderByPayment(context.Background(), "sig_1", "evt_1", types.PAYMENT_SOLANA)
	s.NoError(err)
	s.Nil(order)
}

func (s *RepositoryTestSuite) TestFindOrderByPaymentHit() {
	s.mock.ExpectQuery(`SELECT \* FROM "orders" WHERE transaction_hash = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "event_id"}).AddRow("order_1", "ORD-1", "evt_1"))
	s.mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE "order_items"."order_id" = \$1`).
		WithArgs("order_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "quantity"}).
			AddRow("item_1", "order_1", "tt_vip", 2))

	order, err := s.repo.FindOrderByPayment(context.Background(), "sig_1", "evt_1", types.PAYMENT_SOLANA)
	s.Require().NoError(err)
	s.Equal("ORD-1", order.OrderNumber)
	s.Require().Len(order.Items, 1)
	s.Equal(2, order.Items[0].Quantity)
}

func (s *RepositoryTestSuite) TestCheckWalletExists() {
	s.mock.ExpectQuery(`check_wallet_exists\(wallet_address_param := \$1\)`).
		WithArgs("wallet_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists", "user_id", "username", "display_name"}).
			AddRow(true, "user_1", "kadi", nil))

	owner, err := s.repo.CheckWalletExists(context.Background(), "wallet_1")
	s.Require().NoError(err)
	s.True(owner.Exists)
	s.Equal("user_1", *owner.UserID)
	s.Equal("kadi", owner.Name())
}

func (s *RepositoryTestSuite) TestCheckWalletExistsEmpty() {
	s.mock.ExpectQuery(`check_wallet_exists`).
		WillReturnRows(sqlmock.NewRows([]string{"exists", "user_id", "username", "display_name"}))

	owner, err := s.repo.CheckWalletExists(context.Background(), "wallet_1")
	s.Require().NoError(err)
	s.False(owner.Exists)
}

func (s *RepositoryTestSuite) TestCreatePaidOrder() {
	s.mock.ExpectQuery(`create_paid_ticket_order_with_items`).
		WithArgs("evt_1", nil, "wallet_1", "Kadiatu", "", "ORD-1", sqlmock.AnyArg(), "SLE", "orange_money", "pmc_1",
			`[{"ticket_type_id":"tt_vip","quantity":1,"unit_price":"20","total_price":"20"}]`).
		WillReturnRows(sqlmock.NewRows([]string{"success", "order_id", "tickets_claimed", "error_message"}).
			AddRow(true, "order_1", 1, nil))

	wallet := "wallet_1"
	res, err := s.repo.CreatePaidOrder(context.Background(), OrderParams{
		EventID:            "evt_1",
		BuyerWalletAddress: &wallet,
		BuyerName:          "Kadiatu",
		OrderNumber:        "ORD-1",
		TotalAmount:        decimal.NewFromInt(22),
		Currency:           "SLE",
		PaymentMethod:      types.PAYMENT_ORANGE_MONEY,
		TransactionHash:    "pmc_1",
		Items:              []types.OrderLine{{TicketTypeID: "tt_vip", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}},
	})
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal("order_1", *res.OrderID)
	s.Equal(1, res.TicketsClaimed)
}

func (s *RepositoryTestSuite) TestCreateFreeOrderSoldOut() {
	s.mock.ExpectQuery(`create_free_ticket_order_with_items`).
		WillReturnRows(sqlmock.NewRows([]string{"success", "order_id", "tickets_claimed", "error_message"}).
			AddRow(false, nil, 0, "Not enough tickets available for Community"))

	res, err := s.repo.CreateFreeOrder(context.Background(), OrderParams{
		EventID: "evt_1",
		Items:   []types.OrderLine{{TicketTypeID: "tt_free", Quantity: 1}},
	})
	s.Require().NoError(err)
	s.False(res.Success)
	s.Nil(res.OrderID)
	s.Contains(*res.ErrorMessage, "Not enough tickets available")
}

func (s *RepositoryTestSuite) TestProcedureWithoutRow() {
	s.mock.ExpectQuery(`create_paid_ticket_order_with_items`).
		WillReturnRows(sqlmock.NewRows([]string{"success", "order_id", "tickets_claimed", "error_message"}))

	_, err := s.repo.CreatePaidOrder(context.Background(), OrderParams{EventID: "evt_1"})
	s.ErrorIs(err, errNoProcedureRow)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestItemsJSON(t *testing.T) {
	out, err := itemsJSON([]types.OrderLine{{TicketTypeID: "tt_vip", Quantity: 3, UnitPrice: decimal.RequireFromString("12.50")}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"ticket_type_id":"tt_vip","quantity":3,"unit_price":"12.5","total_price":"37.5"}]`, out)
}
