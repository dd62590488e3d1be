package embedding

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	ten         = decimal.NewFromInt(10)
	fifty       = decimal.NewFromInt(50)
	twoHundred  = decimal.NewFromInt(200)
	monthLength = 30 * 24 * time.Hour
)

type category struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

type amount struct {
	Amount json.Number `json:"amount"`
}

// TransactionText describes a transaction as short sentences, merchant first.
func TransactionText(t TransactionRow) string {
	var parts []string
	parts = append(parts, firstNonEmpty(t.MerchantName, t.Name))

	if cat, ok := parseCategory(t.PersonalFinanceCategory); ok {
		parts = append(parts, cat.Primary+" category")
		if cat.Detailed != "" {
			parts = append(parts, cat.Detailed)
		}
	} else if len(t.Category) > 0 {
		parts = append(parts, strings.Join(t.Category, ",")+" category")
	}

	switch {
	case t.Amount.LessThan(ten):
		parts = append(parts, "small purchase")
	case t.Amount.LessThan(fifty):
		parts = append(parts, "moderate purchase")
	case t.Amount.LessThan(twoHundred):
		parts = append(parts, "significant purchase")
	default:
		parts = append(parts, "expensive purchase")
	}
	parts = append(parts, "$"+t.Amount.StringFixed(2))

	if d, err := time.Parse(dateLayout, t.Date); err == nil {
		parts = append(parts, d.Format("January 2006"), d.Weekday().String())
	}

	if t.PaymentChannel != nil && *t.PaymentChannel != "" {
		parts = append(parts, *t.PaymentChannel+" payment")
	}

	return joinParts(parts)
}

// InvestmentText describes a holding, security first, with its gain or loss.
func InvestmentText(inv InvestmentRow) string {
	var parts []string
	parts = append(parts, deref(inv.SecurityName))
	if inv.Symbol != nil && *inv.Symbol != "" {
		parts = append(parts, "ticker symbol "+*inv.Symbol)
	}
	if inv.AccountType != nil {
		parts = append(parts, *inv.AccountType+" account")
	}
	parts = append(parts, deref(inv.AccountSubtype))
	if inv.InstitutionName != nil {
		parts = append(parts, "held at "+*inv.InstitutionName)
	}

	quantity := inv.Quantity.Decimal
	value := inv.Value.Decimal
	if inv.Quantity.Valid {
		parts = append(parts, quantity.String()+" shares")
	}
	if inv.Value.Valid {
		parts = append(parts, "worth $"+value.StringFixed(2))
	}

	if inv.Quantity.Valid && inv.Value.Valid && inv.CostBasis.Valid {
		gain := value.Sub(quantity.Mul(inv.CostBasis.Decimal))
		switch gain.Sign() {
		case 1:
			parts = append(parts, "profitable position", "gain of $"+gain.StringFixed(2))
		case -1:
			parts = append(parts, "loss position", "down $"+gain.Abs().StringFixed(2))
		}
	}

	parts = append(parts, deref(inv.AccountName))
	return joinParts(parts)
}

// RecurringText describes a recurring stream, frequency first after the payee.
func RecurringText(r RecurringRow) string {
	var parts []string
	parts = append(parts, deref(r.Description), deref(r.MerchantName))

	freq := strings.ToLower(r.Frequency)
	parts = append(parts, freq+" recurring payment", "subscription")
	if r.Status == "MATURE" {
		parts = append(parts, "established recurring transaction")
	}

	var avg amount
	if len(r.AverageAmount) > 0 && json.Unmarshal(r.AverageAmount, &avg) == nil && avg.Amount != "" {
		parts = append(parts, fmt.Sprintf("$%s per %s", avg.Amount, freq))
	}

	if cat, ok := parseCategory(r.PersonalFinanceCategory); ok {
		parts = append(parts, cat.Primary+" category")
	}

	parts = append(parts, durationLabel(r.FirstDate, r.LastDate))
	return joinParts(parts)
}

func durationLabel(first, last *string) string {
	if first == nil || last == nil {
		return "recent subscription"
	}
	from, err1 := time.Parse(dateLayout, *first)
	to, err2 := time.Parse(dateLayout, *last)
	if err1 != nil || err2 != nil {
		return "recent subscription"
	}

	months := float64(to.Sub(from)) / float64(monthLength)
	switch {
	case months > 12:
		return "long-term subscription"
	case months > 6:
		return "established subscription"
	default:
		return "recent subscription"
	}
}

func parseCategory(raw json.RawMessage) (category, bool) {
	var c category
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil || c.Primary == "" {
		return c, false
	}
	return c, true
}

func joinParts(parts []string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ". ")
}

func firstNonEmpty(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
