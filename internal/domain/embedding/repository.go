package embedding

import "context"

// Repository reads source rows and writes embeddings. An empty userID
// means every user.
type Repository interface {
	Transactions(ctx context.Context, userID string, limit int) ([]TransactionRow, error)
	Investments(ctx context.Context, userID string, limit int) ([]InvestmentRow, error)
	Recurring(ctx context.Context, userID string, limit int) ([]RecurringRow, error)
	ExistingSourceIDs(ctx context.Context, source Source, ids []string) (map[string]struct{}, error)
	Insert(ctx context.Context, e Embedding) error
}

// Embedder turns text into a vector. Implemented by the embedder client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
