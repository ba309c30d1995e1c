package payments

// Plan — тариф подписки. Каталог фиксирован в коде.
type Plan struct {
	ID       string
	Title    string
	Months   int
	Days     int
	PriceRUB float64
}

var Plans = []Plan{
	{ID: "1m", Title: "1 месяц", Months: 1, Days: 30, PriceRUB: 200},
	{ID: "3m", Title: "3 месяца", Months: 3, Days: 90, PriceRUB: 540},
	{ID: "12m", Title: "12 месяцев", Months: 12, Days: 365, PriceRUB: 2000},
}

func PlanByID(id string) *Plan {
	for i := range Plans {
		if Plans[i].ID == id {
			return &Plans[i]
		}
	}
	return nil
}

// PlanByAmount подбирает тариф по сумме в рублях (для вебхуков, где
// провайдер не возвращает наш идентификатор тарифа).
func PlanByAmount(amountRUB float64) *Plan {
	for i := range Plans {
		if Plans[i].PriceRUB == amountRUB {
			return &Plans[i]
		}
	}
	return nil
}
