package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_buildListQuery tests filtered range-scan SQL assembly
func Test_buildListQuery(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		filter       Filter
		wantContains []string
		wantArgs     []interface{}
		description  string
	}{
		{
			name:         "No filters",
			filter:       Filter{},
			wantContains: []string{"ORDER BY date DESC", "LIMIT $1", "OFFSET $2"},
			wantArgs:     []interface{}{defaultListLimit, 0},
			description:  "Should apply default limit and zero offset only",
		},
		{
			name:   "All filters",
			filter: Filter{Start: start, End: end, Region: "Europe", SalesRep: "Emma Wilson", Offset: 20, Limit: 10},
			wantContains: []string{
				"date >= $1",
				"date <= $2",
				"region = $3",
				"sales_rep = $4",
				"LIMIT $5",
				"OFFSET $6",
			},
			wantArgs:    []interface{}{start, end, "Europe", "Emma Wilson", 10, 20},
			description: "Should number placeholders in filter order",
		},
		{
			name:         "Region only",
			filter:       Filter{Region: "Asia Pacific"},
			wantContains: []string{"WHERE region = $1", "LIMIT $2"},
			wantArgs:     []interface{}{"Asia Pacific", defaultListLimit, 0},
			description:  "Should emit a single condition without AND",
		},
		{
			name:         "Limit above ceiling is clamped",
			filter:       Filter{Limit: 100000},
			wantContains: []string{"LIMIT $1"},
			wantArgs:     []interface{}{maxListLimit, 0},
			description:  "Should clamp oversized limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.filter)

			for _, fragment := range tt.wantContains {
				assert.Contains(t, query, fragment, tt.description)
			}
			require.Equal(t, tt.wantArgs, args, tt.description)

			if len(tt.filter.Region) == 0 && tt.filter.Start.IsZero() &&
				tt.filter.End.IsZero() && tt.filter.SalesRep == "" {
				assert.NotContains(t, query, "WHERE", "Should omit WHERE with no filters")
			}
		})
	}
}

// Test_buildListQuery_NoTrailingAnd verifies condition joining
func Test_buildListQuery_NoTrailingAnd(t *testing.T) {
	query, _ := buildListQuery(Filter{Region: "Europe", SalesRep: "John Smith"})

	assert.Equal(t, 1, strings.Count(query, " AND "), "Two conditions should join with one AND")
}
