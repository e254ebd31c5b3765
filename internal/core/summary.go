package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthAmount is one month's total within a year.
type MonthAmount struct {
	Month  int // 1-12
	Amount Money
}

// ChartData is the {labels, data} payload consumed by the dashboard charts.
type ChartData struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// BudgetAlert flags a category whose month-to-date spend exceeds its budget.
type BudgetAlert struct {
	Category string
	Limit    Money
	Spent    Money
}

// YearOverview is the aggregate dashboard summary for one year.
type YearOverview struct {
	Year            int
	MonthlyTotal    Money // total for the selected month, if any
	YearlyTotal     Money
	AverageMonthly  Money
	HighestMonth    int // 1-12, 0 when the year has no expenses
	HighestMonthAmt Money
	TopCategory     string
	TopCategoryAmt  Money
	Breakdown       []MonthAmount
	ByCategory      []CategoryAmount
	Alerts          []BudgetAlert
}
