package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"Number", `1500`, "1500"},
		{"Fraction", `2.5`, "2.5"},
		{"NumericString", `"1500"`, "1500"},
		{"PaddedString", `" 2.5 "`, "2.5"},
		{"EmptyString", `""`, "0"},
		{"Garbage", `"abc"`, "0"},
		{"Null", `null`, "0"},
		{"Bool", `true`, "0"},
		{"Object", `{}`, "0"},
		{"Negative", `-3`, "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(a.Decimal), "got %s", a.String())
		})
	}
}

func TestCalculateTotal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "FeatureSum",
			body: `{"rate_type":"feature","features":[{"name":"Landing","price":1500000},{"name":"Auth","price":"500000"}]}`,
			want: "2000000",
		},
		{
			name: "FeatureWithInvalidPrice",
			body: `{"rate_type":"feature","features":[{"name":"A","price":"abc"},{"name":"B","price":250}]}`,
			want: "250",
		},
		{
			name: "NoFeatures",
			body: `{"rate_type":"feature"}`,
			want: "0",
		},
		{
			name: "Hourly",
			body: `{"rate_type":"hourly","hourly_rate":"150000","estimated_hours":12}`,
			want: "1800000",
		},
		{
			name: "HourlyIgnoresFeatures",
			body: `{"rate_type":"hourly","hourly_rate":10,"estimated_hours":2.5,"features":[{"name":"x","price":99}]}`,
			want: "25",
		},
		{
			name: "HourlyWithInvalidHours",
			body: `{"rate_type":"hourly","hourly_rate":100,"estimated_hours":"lots"}`,
			want: "0",
		},
		{
			name: "UnknownModeSumsFeatures",
			body: `{"rate_type":"weird","features":[{"name":"x","price":7}]}`,
			want: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form ProjectForm
			require.NoError(t, json.Unmarshal([]byte(tt.body), &form))
			got := CalculateTotal(form.Normalized())
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestProject_ApplyForm(t *testing.T) {
	var p Project
	p.ApplyForm(ProjectForm{
		ClientName:     "  Acme ",
		ProjectTitle:   " Website ",
		RateType:       RateHourly,
		Features:       []FeatureInput{{Name: " Design ", Price: NewAmount(10)}},
		HourlyRate:     NewAmount(200),
		EstimatedHours: NewAmount(3),
	})

	assert.Equal(t, "Acme", p.ClientName)
	assert.Equal(t, "Website", p.ProjectTitle)
	assert.Equal(t, "Design", p.Features[0].Name)
	assert.True(t, decimal.NewFromInt(600).Equal(p.TotalAmount))

	p.ApplyForm(ProjectForm{ClientName: "Acme", ProjectTitle: "Website", Features: []FeatureInput{{Name: "A", Price: NewAmount(5)}}})
	assert.Equal(t, RateFeature, p.RateType)
	assert.True(t, p.HourlyRate.IsZero())
	assert.True(t, decimal.NewFromInt(5).Equal(p.TotalAmount))
}

func TestComputeStats(t *testing.T) {
	projects := []Project{
		{ID: 1, ProjectTitle: "A", TotalAmount: decimal.NewFromInt(100), IsPaid: true},
		{ID: 2, ProjectTitle: "B", TotalAmount: decimal.NewFromInt(250)},
		{ID: 3, ProjectTitle: "C", TotalAmount: decimal.NewFromInt(50), IsPaid: true},
	}

	stats := ComputeStats(projects)
	assert.Equal(t, 3, stats.TotalProjects)
	assert.Equal(t, 2, stats.PaidProjects)
	assert.Equal(t, 1, stats.UnpaidProjects)
	assert.True(t, decimal.NewFromInt(150).Equal(stats.TotalEarnings))
	assert.True(t, decimal.NewFromInt(250).Equal(stats.PendingEarnings))
	assert.True(t, decimal.NewFromInt(150).Equal(stats.RemainingBalance))
	assert.True(t, stats.Expenses.IsZero())
	assert.Len(t, stats.Chart, 3)
}

func TestDashboardStats_WithExpenses(t *testing.T) {
	stats := ComputeStats([]Project{
		{ID: 1, TotalAmount: decimal.NewFromInt(1000000), IsPaid: true},
		{ID: 2, TotalAmount: decimal.NewFromInt(500000)},
	})

	covered := stats.WithExpenses(ParseAmount("250000").Decimal)
	assert.True(t, decimal.NewFromInt(250000).Equal(covered.Expenses))
	assert.True(t, decimal.NewFromInt(750000).Equal(covered.RemainingBalance))

	over := stats.WithExpenses(ParseAmount("1200000.5").Decimal)
	assert.True(t, over.RemainingBalance.IsNegative())
	assert.Equal(t, "-200000.5", over.RemainingBalance.String())

	cleared := over.WithExpenses(ParseAmount("abc").Decimal)
	assert.True(t, cleared.Expenses.IsZero())
	assert.True(t, stats.TotalEarnings.Equal(cleared.RemainingBalance))
	assert.True(t, stats.Expenses.IsZero(), "receiver is not modified")
}
