// pkg/invoice/invoice.go

package invoice

import (
	"github.com/shopspring/decimal"
)

// Rates are the billing constants applied to every invoice.
type Rates struct {
	Rate     decimal.Decimal
	SGSTRate decimal.Decimal
	CGSTRate decimal.Decimal
}

// Invoice represents one generated GST invoice. It is built by New and
// never modified afterwards.
type Invoice struct {
	InvoiceNumber string
	InvoiceDate   string
	TruckNumber   string
	Quantity      decimal.Decimal
	Rate          decimal.Decimal
	SGSTRate      decimal.Decimal
	CGSTRate      decimal.Decimal

	Amount       decimal.Decimal
	SGST         decimal.Decimal
	CGST         decimal.Decimal
	GrandTotal   decimal.Decimal
	RoundedTotal decimal.Decimal
	AmountWords  string
}

// New computes the taxes and totals for qty units at the given rates.
// The grand total is rounded to a whole rupee half away from zero, so
// 560.50 becomes 561.
func New(number, date, truck string, qty decimal.Decimal, rates Rates) Invoice {
	amount := qty.Mul(rates.Rate)
	sgst := amount.Mul(rates.SGSTRate)
	cgst := amount.Mul(rates.CGSTRate)
	grand := amount.Add(sgst).Add(cgst)
	rounded := grand.Round(0)

	return Invoice{
		InvoiceNumber: number,
		InvoiceDate:   date,
		TruckNumber:   truck,
		Quantity:      qty,
		Rate:          rates.Rate,
		SGSTRate:      rates.SGSTRate,
		CGSTRate:      rates.CGSTRate,
		Amount:        amount,
		SGST:          sgst,
		CGST:          cgst,
		GrandTotal:    grand,
		RoundedTotal:  rounded,
		AmountWords:   AmountInWords(rounded.BigInt()),
	}
}

// Context is the key/value map consumed by the document template.
func (inv Invoice) Context() map[string]string {
	return map[string]string{
		"invoice_no":   inv.InvoiceNumber,
		"date":         inv.InvoiceDate,
		"truck_no":     inv.TruckNumber,
		"qty":          inv.Quantity.StringFixed(2),
		"amount":       FormatGrouped(inv.Amount),
		"sgst":         FormatGrouped(inv.SGST),
		"cgst":         FormatGrouped(inv.CGST),
		"gtotal":       FormatGrouped(inv.GrandTotal),
		"rounded":      FormatGrouped(inv.RoundedTotal),
		"amount_words": inv.AmountWords,
	}
}
