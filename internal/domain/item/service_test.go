package item

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"keepmore/internal/infrastructure/plaid"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	UpsertFunc     func(ctx context.Context, kind Kind, params CreateParams) (*Item, error)
	GetFunc        func(ctx context.Context, kind Kind, id string) (*Item, error)
	GetForUserFunc func(ctx context.Context, kind Kind, id, userID string) (*Item, error)
	ListFunc       func(ctx context.Context, kind Kind, userID string) ([]*Item, error)
	DeleteFunc     func(ctx context.Context, kind Kind, id string) error
}

func (m *MockRepository) Upsert(ctx context.Context, kind Kind, params CreateParams) (*Item, error) {
	return m.UpsertFunc(ctx, kind, params)
}

func (m *MockRepository) Get(ctx context.Context, kind Kind, id string) (*Item, error) {
	return m.GetFunc(ctx, kind, id)
}

func (m *MockRepository) GetForUser(ctx context.Context, kind Kind, id, userID string) (*Item, error) {
	return m.GetForUserFunc(ctx, kind, id, userID)
}

func (m *MockRepository) List(ctx context.Context, kind Kind, userID string) ([]*Item, error) {
	return m.ListFunc(ctx, kind, userID)
}

func (m *MockRepository) MarkSynced(ctx context.Context, kind Kind, id string, at time.Time) error {
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, kind Kind, id string) error {
	return m.DeleteFunc(ctx, kind, id)
}

// MockLinker implements PlaidLinker for testing
type MockLinker struct {
	CreateLinkTokenFunc     func(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error)
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	RemoveItemFunc          func(ctx context.Context, accessToken string) error
}

func (m *MockLinker) CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
	return m.CreateLinkTokenFunc(ctx, req)
}

func (m *MockLinker) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	return m.ExchangePublicTokenFunc(ctx, publicToken)
}

func (m *MockLinker) RemoveItem(ctx context.Context, accessToken string) error {
	return m.RemoveItemFunc(ctx, accessToken)
}

// prefixCipher "encrypts" by prefixing, which is enough to tell sealed from plain values apart.
type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) { return "sealed:" + s, nil }
func (prefixCipher) Decrypt(s string) (string, error) {
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("bad ciphertext")
	}
	return strings.TrimPrefix(s, "sealed:"), nil
}

type recordingDeleter struct {
	name  string
	calls *[]string
	err   error
}

func (d recordingDeleter) DeleteByItem(ctx context.Context, plaidItemID string) (int64, error) {
	*d.calls = append(*d.calls, d.name+":"+plaidItemID)
	return 1, d.err
}

func TestService_Exchange(t *testing.T) {
	var stored CreateParams
	repo := &MockRepository{
		UpsertFunc: func(ctx context.Context, kind Kind, params CreateParams) (*Item, error) {
			if kind != KindInvestments {
				t.Errorf("kind = %s, want investments", kind)
			}
			stored = params
			return &Item{ID: "row-1", Kind: kind, UserID: params.UserID, ItemID: params.ItemID}, nil
		},
	}
	linker := &MockLinker{
		ExchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
			return &plaid.ExchangeResponse{AccessToken: "access-sandbox-1", ItemID: "plaid-item-1", RequestID: "req-1"}, nil
		},
	}

	svc := NewService(repo, linker, prefixCipher{}, nil, LinkConfig{}, zap.NewNop())
	res, err := svc.Exchange(context.Background(), KindInvestments, ExchangeParams{
		PublicToken:     "public-sandbox-1",
		UserID:          "6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10",
		InstitutionName: "Vanguard",
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if res.ItemID != "plaid-item-1" || res.PlaidItemID != "row-1" || res.RequestID != "req-1" {
		t.Errorf("unexpected result: %+v", res)
	}
	if stored.AccessToken != "sealed:access-sandbox-1" {
		t.Errorf("stored access token = %q, want encrypted value", stored.AccessToken)
	}
	if stored.InstitutionName != "Vanguard" {
		t.Errorf("stored institution = %q", stored.InstitutionName)
	}
}

func TestService_ExchangeValidation(t *testing.T) {
	svc := NewService(&MockRepository{}, &MockLinker{}, prefixCipher{}, nil, LinkConfig{}, zap.NewNop())

	tests := []ExchangeParams{
		{UserID: "u1"},
		{PublicToken: "public-1"},
	}
	for _, params := range tests {
		if _, err := svc.Exchange(context.Background(), KindBanking, params); !errors.Is(err, ErrValidation) {
			t.Errorf("Exchange(%+v) error = %v, want ErrValidation", params, err)
		}
	}
}

func TestService_Unlink(t *testing.T) {
	var calls []string
	repo := &MockRepository{
		GetForUserFunc: func(ctx context.Context, kind Kind, id, userID string) (*Item, error) {
			return &Item{ID: id, UserID: userID, AccessToken: "sealed:access-1"}, nil
		},
		DeleteFunc: func(ctx context.Context, kind Kind, id string) error {
			calls = append(calls, "item:"+id)
			return nil
		},
	}
	linker := &MockLinker{
		RemoveItemFunc: func(ctx context.Context, accessToken string) error {
			calls = append(calls, "plaid:"+accessToken)
			return nil
		},
	}
	cascade := map[Kind][]ScopedDeleter{
		KindBanking: {
			recordingDeleter{name: "transactions", calls: &calls},
			recordingDeleter{name: "accounts", calls: &calls},
			recordingDeleter{name: "recurring", calls: &calls},
		},
	}

	svc := NewService(repo, linker, prefixCipher{}, cascade, LinkConfig{}, zap.NewNop())
	if err := svc.Unlink(context.Background(), KindBanking, "u1", "row-1"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}

	want := []string{"plaid:access-1", "transactions:row-1", "accounts:row-1", "recurring:row-1", "item:row-1"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestService_UnlinkPlaidFailureDeletesNothing(t *testing.T) {
	var calls []string
	repo := &MockRepository{
		GetForUserFunc: func(ctx context.Context, kind Kind, id, userID string) (*Item, error) {
			return &Item{ID: id, AccessToken: "sealed:access-1"}, nil
		},
		DeleteFunc: func(ctx context.Context, kind Kind, id string) error {
			calls = append(calls, "item")
			return nil
		},
	}
	linker := &MockLinker{
		RemoveItemFunc: func(ctx context.Context, accessToken string) error {
			return &plaid.Error{Code: "ITEM_LOGIN_REQUIRED", Message: "login required"}
		},
	}
	cascade := map[Kind][]ScopedDeleter{KindBanking: {recordingDeleter{name: "accounts", calls: &calls}}}

	svc := NewService(repo, linker, prefixCipher{}, cascade, LinkConfig{}, zap.NewNop())
	err := svc.Unlink(context.Background(), KindBanking, "u1", "row-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 0 {
		t.Errorf("expected no deletes, got %v", calls)
	}
}

func TestService_UnlinkWithoutCredentialSkipsPlaid(t *testing.T) {
	repo := &MockRepository{
		GetForUserFunc: func(ctx context.Context, kind Kind, id, userID string) (*Item, error) {
			return &Item{ID: id}, nil
		},
		DeleteFunc: func(ctx context.Context, kind Kind, id string) error { return nil },
	}
	linker := &MockLinker{
		RemoveItemFunc: func(ctx context.Context, accessToken string) error {
			t.Error("RemoveItem should not be called without a credential")
			return nil
		},
	}

	svc := NewService(repo, linker, prefixCipher{}, nil, LinkConfig{}, zap.NewNop())
	if err := svc.Unlink(context.Background(), KindBanking, "u1", "row-1"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
}

func TestService_UnlinkNotFound(t *testing.T) {
	repo := &MockRepository{
		GetForUserFunc: func(ctx context.Context, kind Kind, id, userID string) (*Item, error) {
			return nil, ErrItemNotFound
		},
	}

	svc := NewService(repo, &MockLinker{}, prefixCipher{}, nil, LinkConfig{}, zap.NewNop())
	if err := svc.Unlink(context.Background(), KindBanking, "u1", "row-x"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Unlink() error = %v, want ErrItemNotFound", err)
	}
}

func TestService_CreateLinkToken(t *testing.T) {
	link := LinkConfig{
		ClientName:         "KeepMore",
		Products:           []string{"transactions"},
		CountryCodes:       []string{"US", "CA"},
		RedirectURI:        "https://keepmore.app/plaid",
		AndroidPackageName: "com.keepmore.app",
	}

	tests := []struct {
		platform    string
		wantRedir   string
		wantAndroid string
	}{
		{platform: "ios", wantRedir: "https://keepmore.app/plaid"},
		{platform: "android", wantAndroid: "com.keepmore.app"},
		{platform: ""},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			linker := &MockLinker{
				CreateLinkTokenFunc: func(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error) {
					if req.User.ClientUserID != "u1" || req.Language != "en" || req.ClientName != "KeepMore" {
						t.Errorf("unexpected request: %+v", req)
					}
					if req.RedirectURI != tt.wantRedir {
						t.Errorf("RedirectURI = %q, want %q", req.RedirectURI, tt.wantRedir)
					}
					if req.AndroidPackageName != tt.wantAndroid {
						t.Errorf("AndroidPackageName = %q, want %q", req.AndroidPackageName, tt.wantAndroid)
					}
					return &plaid.LinkTokenResponse{LinkToken: "link-sandbox-1"}, nil
				},
			}

			svc := NewService(&MockRepository{}, linker, prefixCipher{}, nil, link, zap.NewNop())
			resp, err := svc.CreateLinkToken(context.Background(), LinkTokenParams{UserID: "u1", Platform: tt.platform})
			if err != nil {
				t.Fatalf("CreateLinkToken() error = %v", err)
			}
			if resp.LinkToken != "link-sandbox-1" {
				t.Errorf("LinkToken = %q", resp.LinkToken)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{"": KindBanking, "transactions": KindBanking, "investments": KindInvestments}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("crypto"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseKind(crypto) error = %v, want ErrValidation", err)
	}
	if KindInvestments.Table() != "plaid_investment_items" || KindBanking.Table() != "plaid_items" {
		t.Error("unexpected table names")
	}
}
