package plaid

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 200
)

// ErrPageLimit is yielded when Plaid keeps reporting more rows than the page
// guard allows.
var ErrPageLimit = errors.New("transaction page limit reached before reported total")

// PageQuery describes a /transactions/get window.
type PageQuery struct {
	AccessToken string
	StartDate   string
	EndDate     string
	PageSize    int
	MaxPages    int
}

// TransactionPages yields successive pages of a date window. Iteration stops
// once the fetched count reaches total_transactions, on an empty page, or on
// the first error. Each range starts again from offset zero.
func TransactionPages(ctx context.Context, c ClientInterface, q PageQuery) iter.Seq2[[]Transaction, error] {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.MaxPages <= 0 {
		q.MaxPages = DefaultMaxPages
	}

	return func(yield func([]Transaction, error) bool) {
		offset := 0
		for page := 0; ; page++ {
			if page >= q.MaxPages {
				yield(nil, fmt.Errorf("%w (%d pages, %d rows)", ErrPageLimit, page, offset))
				return
			}

			resp, err := c.GetTransactions(ctx, TransactionsRequest{
				AccessToken: q.AccessToken,
				StartDate:   q.StartDate,
				EndDate:     q.EndDate,
				Options:     TransactionsOptions{Count: q.PageSize, Offset: offset},
			})
			if err != nil {
				yield(nil, err)
				return
			}

			if len(resp.Transactions) == 0 {
				return
			}

			offset += len(resp.Transactions)
			if !yield(resp.Transactions, nil) {
				return
			}

			if offset >= resp.TotalTransactions {
				return
			}
		}
	}
}

// CollectTransactions drains TransactionPages into one slice.
func CollectTransactions(ctx context.Context, c ClientInterface, q PageQuery) ([]Transaction, error) {
	var all []Transaction
	for page, err := range TransactionPages(ctx, c, q) {
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}
