package factories

import (
	"time"

	"github.com/lucsky/cuid"

	"github.com/chrisdamba/chowrider/internal/models"
)

type TransactionFactory struct{}

func (tf *TransactionFactory) CreateTransaction(since time.Time) models.Transaction {
	t := models.Transaction{
		ID:        cuid.New(),
		Date:      fake.Time().TimeBetween(since, time.Now()),
		Reference: "PSK-" + fake.Numerify("##########"),
	}
	if fake.IntBetween(0, 3) == 0 {
		t.Type = models.TransactionDebit
		t.Category = "PAYOUT"
		t.Amount = float64(fake.IntBetween(10, 500)) * 100
		t.Description = "Withdrawal to bank"
		t.Status = fake.RandomStringElement([]string{models.TransactionSuccess, models.TransactionPending, models.TransactionFailed})
		return t
	}
	t.Type = models.TransactionCredit
	t.Category = "DELIVERY_FEE"
	t.Amount = float64(fake.IntBetween(5, 25)) * 100
	t.Description = "Delivery earnings"
	t.Status = models.TransactionSuccess
	return t
}

func (tf *TransactionFactory) CreateTransactions(n int, since time.Time) []models.Transaction {
	txs := make([]models.Transaction, n)
	for i := range txs {
		txs[i] = tf.CreateTransaction(since)
	}
	return txs
}

// CreateEarnings returns a rider wallet consistent with its transactions.
func (tf *TransactionFactory) CreateEarnings(n int) *models.Earnings {
	e := &models.Earnings{Transactions: tf.CreateTransactions(n, time.Now().AddDate(0, -1, 0))}
	for _, t := range e.Transactions {
		switch {
		case t.Type == models.TransactionCredit:
			e.TotalEarnings += t.Amount
		case t.Status == models.TransactionSuccess:
			e.Withdrawn += t.Amount
		case t.Status == models.TransactionPending:
			e.PendingBalance += t.Amount
		}
	}
	e.AvailableBalance = e.TotalEarnings - e.Withdrawn - e.PendingBalance
	if e.AvailableBalance < 0 {
		e.AvailableBalance = 0
	}
	return e
}
