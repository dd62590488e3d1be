package plaidsync

import (
	"errors"
	"fmt"
	"slices"

	"keepmore/internal/domain/item"
)

// Resource names a sub-resource synced for an item. The values double as
// keys of ItemResult.Results in API responses.
type Resource string

const (
	ResourceAccounts     Resource = "accounts"
	ResourceTransactions Resource = "transactions"
	ResourceRecurring    Resource = "recurringTransactions"
	ResourceInvestments  Resource = "investments"
)

// ResourcesFor returns the sub-resources synced for items of a kind.
func ResourcesFor(kind item.Kind) []Resource {
	if kind == item.KindInvestments {
		return []Resource{ResourceInvestments}
	}
	return []Resource{ResourceAccounts, ResourceTransactions, ResourceRecurring}
}

// ErrInvalidResource marks a resource name that is unknown or not synced
// for the requested item kind.
var ErrInvalidResource = errors.New("invalid resource")

// ParseResource accepts the resource names used in results plus "recurring",
// restricted to the resources synced for kind.
func ParseResource(kind item.Kind, s string) (Resource, error) {
	var res Resource
	switch s {
	case "accounts":
		res = ResourceAccounts
	case "transactions":
		res = ResourceTransactions
	case "recurring", "recurringTransactions":
		res = ResourceRecurring
	case "investments":
		res = ResourceInvestments
	default:
		return "", fmt.Errorf("%w: unknown resource %q", ErrInvalidResource, s)
	}
	if err := checkResources(kind, []Resource{res}); err != nil {
		return "", err
	}
	return res, nil
}

func checkResources(kind item.Kind, resources []Resource) error {
	allowed := ResourcesFor(kind)
	for _, r := range resources {
		if !slices.Contains(allowed, r) {
			return fmt.Errorf("%w: %s is not synced for %s items", ErrInvalidResource, r, kind)
		}
	}
	return nil
}

// ResourceResult reports one sub-resource of one item. Inserted and Updated
// come from the pre-write key lookup and are informational only.
type ResourceResult struct {
	Success  bool   `json:"success"`
	Count    int    `json:"count"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func failed(err error) *ResourceResult {
	return &ResourceResult{Success: false, Error: errorMessage(err)}
}

// ItemResult aggregates the sub-resources of one item.
type ItemResult struct {
	PlaidItemID     string                       `json:"plaidItemId"`
	UserID          string                       `json:"userId"`
	InstitutionName *string                      `json:"institutionName"`
	Success         bool                         `json:"success"`
	Results         map[Resource]*ResourceResult `json:"results,omitempty"`
	Error           string                       `json:"error,omitempty"`
}

// Inserted returns the insert count of one sub-resource, 0 when it did not run.
func (r ItemResult) Inserted(res Resource) int {
	if rr, ok := r.Results[res]; ok && rr != nil {
		return rr.Inserted
	}
	return 0
}

// RunResult aggregates a whole sync run.
type RunResult struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	TotalItems     int          `json:"totalItems"`
	ItemsSucceeded int          `json:"itemsSucceeded"`
	ItemsFailed    int          `json:"itemsFailed"`
	Duration       int64        `json:"duration"`
	ItemResults    []ItemResult `json:"itemResults"`
}
