// Package guard решает, куда перенаправить пользователя в зависимости
// от состояния сессии и текущего сегмента навигации.
package guard

import "strings"

// Сегменты навигации.
const (
	SegmentAuth       = "(auth)"
	SegmentOnboarding = "(onboarding)"
	SegmentMain       = "(tabs)"
)

// Decision — решение охранника маршрутов.
type Decision string

const (
	Stay         Decision = "stay"
	ToAuth       Decision = "to-auth"
	ToOnboarding Decision = "to-onboarding"
	ToMain       Decision = "to-main"
)

// Route возвращает маршрут, на который ведёт решение. Для Stay возвращает пустую строку.
func (d Decision) Route() string {
	switch d {
	case ToAuth:
		return "/" + SegmentAuth + "/sign-in"
	case ToOnboarding:
		return "/" + SegmentOnboarding
	case ToMain:
		return "/" + SegmentMain
	}
	return ""
}

// Input — всё, от чего зависит решение.
type Input struct {
	Initialized         bool
	HasUser             bool
	OnboardingCompleted bool
	Segment             string
}

// Decide — чистая функция решения. Перенаправление выдаётся только тогда,
// когда текущий сегмент не совпадает с целевым, поэтому повторная оценка
// после перехода даёт Stay.
func Decide(in Input) Decision {
	if !in.Initialized {
		return Stay
	}
	seg := Normalize(in.Segment)
	inAuth := seg == SegmentAuth
	inOnboarding := seg == SegmentOnboarding

	switch {
	case !in.HasUser:
		if inAuth {
			return Stay
		}
		return ToAuth
	case !in.OnboardingCompleted:
		if inOnboarding {
			return Stay
		}
		return ToOnboarding
	case inAuth || inOnboarding:
		return ToMain
	}
	return Stay
}

// Normalize выделяет первый сегмент из пути вида "/(auth)/sign-in".
func Normalize(segment string) string {
	s := strings.TrimPrefix(strings.TrimSpace(segment), "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
