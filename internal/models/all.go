package models

// All lists every model owned by the schema, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Wallet{},
		&Property{},
		&PropertyToken{},
		&Investment{},
		&Transaction{},
		&Reward{},
		&PortfolioSummary{},
		&PortfolioHistory{},
		&PortfolioDailyCandle{},
		&DisplaySequence{},
		&AuditLog{},
	}
}
