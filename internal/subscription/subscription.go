// Package subscription вычисляет производное состояние подписки и пробного периода.
//
// Все функции чистые: текущее время передаётся явно и никогда не читается неявно.
package subscription

import (
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// TrialDays — длительность пробного периода, фиксированное бизнес-правило.
const TrialDays = 3

const day = 24 * time.Hour

// TrialEndsAt возвращает конец пробного периода, начатого в start.
func TrialEndsAt(start time.Time) time.Time {
	return start.Add(TrialDays * day)
}

// Default — состояние «пробный период, ноль дней» для отсутствующего пользователя.
func Default() models.SubscriptionState {
	return models.SubscriptionState{Status: models.StatusTrial}
}

// Evaluate выводит эффективный статус, доступ к премиум-комнатам и остаток дней.
// Для trial сравнивается trialEndsAt, для active — subscriptionEndsAt;
// отсутствующая метка окончания считается истёкшей.
func Evaluate(status models.SubscriptionStatus, trialEndsAt, subscriptionEndsAt *time.Time, now time.Time) models.SubscriptionState {
	switch status {
	case models.StatusTrial:
		return window(models.StatusTrial, trialEndsAt, now)
	case models.StatusActive:
		return window(models.StatusActive, subscriptionEndsAt, now)
	case models.StatusCancelled:
		return models.SubscriptionState{Status: models.StatusCancelled}
	default:
		return models.SubscriptionState{Status: models.StatusExpired}
	}
}

// ForUser — Evaluate по полям профиля. Для nil-пользователя возвращает Default.
func ForUser(u *models.User, now time.Time) models.SubscriptionState {
	if u == nil {
		return Default()
	}
	return Evaluate(u.SubscriptionStatus, u.TrialEndsAt, u.SubscriptionEndsAt, now)
}

func window(status models.SubscriptionStatus, endsAt *time.Time, now time.Time) models.SubscriptionState {
	if endsAt == nil || !now.Before(*endsAt) {
		return models.SubscriptionState{Status: models.StatusExpired}
	}
	return models.SubscriptionState{
		Status:           status,
		CanAccessPremium: true,
		DaysRemaining:    daysCeil(endsAt.Sub(now)),
	}
}

func daysCeil(d time.Duration) int {
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
