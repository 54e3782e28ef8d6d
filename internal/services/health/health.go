// Package health вычисляет оценку здоровья портфеля подписок.
// Оценка — чистая функция от списка подписок: стартует со 100 баллов,
// из которых вычитаются штрафы за дубликаты, рискованные пробные
// периоды и неразобранные категории.
package health

import (
	"strings"
	"time"
	"unicode"

	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/models"
)

// Штрафы и границы оценки.
const (
	maxScore             = 100
	duplicatePenalty     = 15
	riskyTrialPenalty    = 20
	uncategorizedPenalty = 5
	trialRiskWindowDays  = 3
)

// Score возвращает оценку портфеля в диапазоне [0, 100].
// Учитываются только активные подписки. Пустой портфель — 100 баллов:
// нет подписок, нет и рисков.
//
// Штрафы:
//   - 15 баллов один раз за каждое повторяющееся нормализованное имя,
//     сколько бы копий его ни было;
//   - 20 баллов за каждую пробную подписку, якорная дата которой
//     попадает в окно трёх дней от now (без проекции на следующий цикл);
//   - 5 баллов за каждую подписку без категории или с категорией "Other".
func Score(subs []*models.Subscription, now time.Time) int {
	score := maxScore
	today := datecycle.Truncate(now)

	nameCounts := make(map[string]int)
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		nameCounts[normalizeName(sub.Name)]++
	}
	for _, count := range nameCounts {
		if count > 1 {
			score -= duplicatePenalty
		}
	}

	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if isTrial(sub) && trialAtRisk(sub, today) {
			score -= riskyTrialPenalty
		}
		if uncategorized(sub.Category) {
			score -= uncategorizedPenalty
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// Label возвращает словесную характеристику оценки.
// Границы включительные по нижнему порогу: ровно 70 — это "Good".
func Label(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 50:
		return "Needs Attention"
	case score >= 30:
		return "At Risk"
	default:
		return "Critical"
	}
}

// normalizeName приводит имя к нижнему регистру и отбрасывает всё,
// кроме букв и цифр, чтобы "Netflix " и "netflix" считались дубликатами.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isTrial(sub *models.Subscription) bool {
	return sub.IsTrial || strings.Contains(strings.ToLower(sub.Name), "trial")
}

// trialAtRisk проверяет, что якорная дата пробного периода лежит в окне
// [today, today+3d]. Даты в прошлом риском не считаются — пробный период
// уже закончился.
func trialAtRisk(sub *models.Subscription, today time.Time) bool {
	anchor := datecycle.Truncate(sub.AnchorDate)
	if anchor.Before(today) {
		return false
	}
	return datecycle.DaysLeft(anchor, today) <= trialRiskWindowDays
}

func uncategorized(category string) bool {
	trimmed := strings.TrimSpace(category)
	return trimmed == "" || strings.EqualFold(trimmed, "Other")
}
