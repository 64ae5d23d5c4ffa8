package models

// SubscriptionState — производное состояние подписки.
// Не хранится и не является источником истины: всегда пересчитывается
// из временных меток профиля и текущего времени.
type SubscriptionState struct {
	Status           SubscriptionStatus `json:"status"`
	CanAccessPremium bool               `json:"can_access_premium"`
	DaysRemaining    int                `json:"days_remaining"`
}
