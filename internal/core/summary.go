package core

// NetWorth splits account balances by budget participation.
type NetWorth struct {
	OnBudget  Money
	OffBudget Money
	Total     Money
}

// SummarizeAccounts totals balances. Off-budget accounts count towards net worth
// but never towards the budget.
func SummarizeAccounts(accounts []Account) NetWorth {
	var nw NetWorth
	for _, a := range accounts {
		if a.OnBudget() {
			nw.OnBudget = nw.OnBudget.Add(a.Balance)
		} else {
			nw.OffBudget = nw.OffBudget.Add(a.Balance)
		}
	}
	nw.Total = nw.OnBudget.Add(nw.OffBudget)
	return nw
}
