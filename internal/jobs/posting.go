package jobs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Posting is one job posting from the corpus snapshot. Postings are read once
// at process start and never mutated afterwards.
type Posting struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	Location  string   `json:"location,omitempty"`
	URL       string   `json:"url,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CleanText string   `json:"clean_text"`
}

// Postings is the ordered corpus snapshot. The order is load-bearing: the
// vector at position i in the index belongs to the posting at position i
// here. Anything that reorders one side without the other corrupts every
// match result.
type Postings struct {
	Items []*Posting
}

func (p *Postings) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// Texts returns the clean text of every posting in snapshot order.
func (p *Postings) Texts() []string {
	texts := make([]string, 0, p.Len())
	for _, posting := range p.Items {
		texts = append(texts, posting.CleanText)
	}
	return texts
}

// ToFile writes the snapshot as indented JSON.
func (p *Postings) ToFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create postings file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Items); err != nil {
		return fmt.Errorf("encode postings: %w", err)
	}

	return nil
}

// FromFile loads a snapshot previously written by ToFile.
func FromFile(path string) (*Postings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open postings file: %w", err)
	}
	defer file.Close()

	var items []*Posting
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}

	return &Postings{Items: items}, nil
}
