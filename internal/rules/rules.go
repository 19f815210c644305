package rules

import "github.com/shopspring/decimal"

// Rules задает бизнес-константы программы лояльности.
// Значения по умолчанию - референсное поведение магазина,
// деплой может переопределить их без изменения кода.
type Rules struct {
	// Кешбек доступен только после периода возврата товара
	CashbackHoldDays int
	// Проценты по умолчанию, если для товара нет действующей ставки
	DefaultOwnPercent      decimal.Decimal
	DefaultReferralPercent decimal.Decimal
	MinWithdrawal          decimal.Decimal
	// Окно "активного" реферала - для отчетности в кабинете
	ActiveReferralWindowDays int
	// Окно "квалифицированного" реферала - для бонуса за 20 рефералов.
	// Это разные политики, их нельзя объединять.
	QualifiedReferralWindowDays int
	FreePhoneRequiredCount      int
	// Кулдаун между бесплатными телефонами, считается от даты доставки
	FreePhoneCooldownDays int
	Ladder                []BonusTier
}

// BonusTier - ступень бонусной лестницы. FreeDevice помечает верхнюю
// ступень, Cashback для нее не используется.
type BonusTier struct {
	Referrals  int
	Cashback   decimal.Decimal
	FreeDevice bool
}

func Default() Rules {
	return Rules{
		CashbackHoldDays:            14,
		DefaultOwnPercent:           decimal.NewFromInt(5),
		DefaultReferralPercent:      decimal.NewFromInt(3),
		MinWithdrawal:               decimal.NewFromInt(10),
		ActiveReferralWindowDays:    90,
		QualifiedReferralWindowDays: 365,
		FreePhoneRequiredCount:      20,
		FreePhoneCooldownDays:       365,
		Ladder: []BonusTier{
			{Referrals: 10, Cashback: decimal.NewFromInt(50)},
			{Referrals: 15, Cashback: decimal.NewFromInt(100)},
			{Referrals: 20, FreeDevice: true},
		},
	}
}
