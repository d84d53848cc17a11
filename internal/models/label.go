package models

// Label is unique per account by Name. The ID never leaves its account.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
