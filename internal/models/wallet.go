package models

import "time"

type Transaction struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Reference   string    `json:"reference"`
}

// Earnings is the rider wallet view.
type Earnings struct {
	AvailableBalance float64       `json:"availableBalance"`
	PendingBalance   float64       `json:"pendingBalance"`
	TotalEarnings    float64       `json:"totalEarnings"`
	Withdrawn        float64       `json:"withdrawn"`
	Transactions     []Transaction `json:"transactions"`
}

// WalletData is the dispatcher (logistics company) wallet view.
type WalletData struct {
	Balance        float64       `json:"balance"`
	PendingBalance float64       `json:"pendingBalance"`
	Transactions   []Transaction `json:"transactions"`
}

type PayoutRequest struct {
	Amount        float64 `json:"amount"`
	BankCode      string  `json:"bankCode"`
	AccountNumber string  `json:"accountNumber"`
}

type WithdrawalRequest struct {
	Amount        float64 `json:"amount"`
	BankName      string  `json:"bankName,omitempty"`
	AccountNumber string  `json:"accountNumber,omitempty"`
	AccountName   string  `json:"accountName,omitempty"`
}

type PayoutResponse struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Reference string  `json:"reference,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

type Bank struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}
