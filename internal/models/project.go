package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateType selects how a project's fee is computed.
type RateType string

const (
	RateFeature RateType = "feature"
	RateHourly  RateType = "hourly"
)

// Feature is one billable line item of a per-feature project.
type Feature struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Project is a client engagement owned by a single freelancer.
type Project struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	ClientName     string          `gorm:"size:120;not null" json:"client_name"`
	ProjectTitle   string          `gorm:"size:160;not null" json:"project_title"`
	Deadline       string          `gorm:"size:10" json:"deadline,omitempty"`
	RateType       RateType        `gorm:"size:16;not null;default:feature" json:"rate_type"`
	Features       []Feature       `gorm:"serializer:json;type:jsonb" json:"features"`
	HourlyRate     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"hourly_rate"`
	EstimatedHours decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"estimated_hours"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	IsPaid         bool            `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// FeatureInput is a feature row as submitted by the project form.
type FeatureInput struct {
	Name  string `json:"name" validate:"max=120"`
	Price Amount `json:"price"`
}

// ProjectForm is the create/update payload for a project.
type ProjectForm struct {
	ClientName     string         `json:"client_name" validate:"max=120"`
	ProjectTitle   string         `json:"project_title" validate:"max=160"`
	Deadline       string         `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	RateType       RateType       `json:"rate_type" validate:"omitempty,oneof=feature hourly"`
	Features       []FeatureInput `json:"features" validate:"max=100,dive"`
	HourlyRate     Amount         `json:"hourly_rate"`
	EstimatedHours Amount         `json:"estimated_hours"`
}

// Normalized trims text fields and defaults an empty rate type to feature.
func (f ProjectForm) Normalized() ProjectForm {
	f.ClientName = strings.TrimSpace(f.ClientName)
	f.ProjectTitle = strings.TrimSpace(f.ProjectTitle)
	f.Deadline = strings.TrimSpace(f.Deadline)
	f.RateType = RateType(strings.TrimSpace(string(f.RateType)))
	if f.RateType == "" {
		f.RateType = RateFeature
	}
	features := make([]FeatureInput, 0, len(f.Features))
	for _, ft := range f.Features {
		ft.Name = strings.TrimSpace(ft.Name)
		features = append(features, ft)
	}
	f.Features = features
	return f
}

// CalculateTotal returns the sum of feature prices in feature mode and
// hourly rate times estimated hours in hourly mode.
func CalculateTotal(f ProjectForm) decimal.Decimal {
	if f.RateType == RateHourly {
		return f.HourlyRate.Mul(f.EstimatedHours.Decimal)
	}
	total := decimal.Zero
	for _, ft := range f.Features {
		total = total.Add(ft.Price.Decimal)
	}
	return total
}

// ApplyForm copies a normalized form onto the project and recomputes its total.
func (p *Project) ApplyForm(f ProjectForm) {
	f = f.Normalized()
	p.ClientName = f.ClientName
	p.ProjectTitle = f.ProjectTitle
	p.Deadline = f.Deadline

	p.Features = make([]Feature, 0, len(f.Features))
	for _, ft := range f.Features {
		p.Features = append(p.Features, Feature{Name: ft.Name, Price: ft.Price.Decimal})
	}

	if f.RateType == RateHourly {
		p.RateType = RateHourly
		p.HourlyRate = f.HourlyRate.Decimal
		p.EstimatedHours = f.EstimatedHours.Decimal
	} else {
		p.RateType = RateFeature
		p.HourlyRate = decimal.Zero
		p.EstimatedHours = decimal.Zero
	}
	p.TotalAmount = CalculateTotal(f)
}

// Form converts a stored project back into an editable form.
func (p Project) Form() ProjectForm {
	f := ProjectForm{
		ClientName:     p.ClientName,
		ProjectTitle:   p.ProjectTitle,
		Deadline:       p.Deadline,
		RateType:       p.RateType,
		HourlyRate:     Amount{Decimal: p.HourlyRate},
		EstimatedHours: Amount{Decimal: p.EstimatedHours},
	}
	for _, ft := range p.Features {
		f.Features = append(f.Features, FeatureInput{Name: ft.Name, Price: Amount{Decimal: ft.Price}})
	}
	return f
}

// ChartPoint is one bar of the dashboard earnings chart.
type ChartPoint struct {
	ProjectID uint            `json:"project_id"`
	Label     string          `json:"label"`
	Total     decimal.Decimal `json:"total"`
	Paid      bool            `json:"paid"`
}

// DashboardStats summarizes a freelancer's ledger.
type DashboardStats struct {
	TotalProjects   int             `json:"total_projects"`
	PaidProjects    int             `json:"paid_projects"`
	UnpaidProjects  int             `json:"unpaid_projects"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	PendingEarnings decimal.Decimal `json:"pending_earnings"`
	// Expenses is the operating cost the freelancer entered on the dashboard.
	// It is never stored; RemainingBalance is TotalEarnings minus Expenses
	// and goes negative when costs exceed paid income.
	Expenses         decimal.Decimal `json:"expenses"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Chart            []ChartPoint    `json:"chart"`
}

// WithExpenses returns the stats with expenses set and the remaining balance
// recomputed.
func (d DashboardStats) WithExpenses(expenses decimal.Decimal) DashboardStats {
	d.Expenses = expenses
	d.RemainingBalance = d.TotalEarnings.Sub(expenses)
	return d
}

// ComputeStats folds a project list into dashboard figures.
func ComputeStats(projects []Project) DashboardStats {
	stats := DashboardStats{
		TotalEarnings:    decimal.Zero,
		PendingEarnings:  decimal.Zero,
		Expenses:         decimal.Zero,
		RemainingBalance: decimal.Zero,
		Chart:            make([]ChartPoint, 0, len(projects)),
	}
	for _, p := range projects {
		stats.TotalProjects++
		if p.IsPaid {
			stats.PaidProjects++
			stats.TotalEarnings = stats.TotalEarnings.Add(p.TotalAmount)
		} else {
			stats.UnpaidProjects++
			stats.PendingEarnings = stats.PendingEarnings.Add(p.TotalAmount)
		}
		stats.Chart = append(stats.Chart, ChartPoint{
			ProjectID: p.ID,
			Label:     p.ProjectTitle,
			Total:     p.TotalAmount,
			Paid:      p.IsPaid,
		})
	}
	stats.RemainingBalance = stats.TotalEarnings
	return stats
}
