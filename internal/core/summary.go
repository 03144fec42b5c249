package core

// MemberSummary aggregates one member's personal ledger for a month.
type MemberSummary struct {
	UserID   string
	Username string
	Entries  []PersonalExpense
	Total    Money
}

// MonthlySummary is the household-wide view for a specific year+month:
// every member's entries and totals plus the household total.
type MonthlySummary struct {
	Year    int
	Month   int // 1-12
	Members []MemberSummary
	Total   Money
}
