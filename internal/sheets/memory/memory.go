package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"housefin/internal/sheets"
)

var _ sheets.ContributionWriter = (*Store)(nil)

// Store is an in-process ContributionWriter, used for dry runs and tests.
type Store struct {
	mu    sync.Mutex
	rows  []sheets.Row
	index map[string]int
}

func New() *Store {
	return &Store{index: map[string]int{}}
}

// AppendContribution stores the row and returns a synthetic row reference.
func (s *Store) AppendContribution(_ context.Context, row sheets.Row) (string, error) {
	if strings.TrimSpace(row.ID) == "" {
		return "", errors.New("row has no contribution ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[row.ID]; ok {
		return ref(i), nil
	}
	s.rows = append(s.rows, row)
	s.index[row.ID] = len(s.rows) - 1
	return ref(len(s.rows) - 1), nil
}

// Rows returns a copy of the stored rows in append order.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}

// header occupies row 1
func ref(i int) string {
	return fmt.Sprintf("mem:%d", i+2)
}
