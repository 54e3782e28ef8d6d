// Package datecycle реализует проекцию повторяющихся дат списания
// вперёд по календарю и классификацию срочности предстоящего платежа.
// Все функции чистые: "сегодня" передаётся явно, чтобы расчёты были
// детерминированными и тестируемыми.
package datecycle

import (
	"errors"
	"fmt"
	"time"
)

// Периодичности списаний.
const (
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// ErrInvalidDate возвращается для нулевых или некорректных дат.
// Ошибка всегда отдаётся вызывающему: молчаливая подмена даты на "сейчас"
// исказила бы порядок прогнозов.
var ErrInvalidDate = errors.New("invalid date")

// Normalize приводит строку периодичности к одному из известных значений.
// Любое нераспознанное значение трактуется как monthly — это
// задокументированная политика, логирование подмены остаётся на вызывающем.
func Normalize(frequency string) string {
	if frequency == FrequencyYearly {
		return FrequencyYearly
	}
	return FrequencyMonthly
}

// Truncate нормализует момент времени к полуночи его календарного дня.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextOccurrence проецирует якорную дату подписки на первое вхождение,
// не лежащее в прошлом относительно today. Пока дата раньше today, она
// сдвигается на один цикл (+1 месяц или +1 год). Дата, уже лежащая в
// будущем, возвращается без изменений. Количество итераций ограничено
// числом прошедших циклов.
func NextOccurrence(anchor time.Time, frequency string, today time.Time) (time.Time, error) {
	if anchor.IsZero() || today.IsZero() {
		return time.Time{}, ErrInvalidDate
	}

	months, years := 1, 0
	if Normalize(frequency) == FrequencyYearly {
		months, years = 0, 1
	}

	next := Truncate(anchor)
	day := Truncate(today)
	for next.Before(day) {
		next = next.AddDate(years, months, 0)
	}
	return next, nil
}

// PreviousMonth возвращает тот же календарный день месяцем раньше,
// прижимая число к длине предыдущего месяца: прямой AddDate(0, -1, 0)
// от конца месяца нормализуется вперёд и остаётся в исходном месяце
// (31 марта — 1, а не −1 месяц).
func PreviousMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prevFirst := first.AddDate(0, -1, 0)
	lastDay := first.AddDate(0, 0, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(prevFirst.Year(), prevFirst.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysLeft возвращает количество дней до projected, округляя неполные
// сутки вверх.
func DaysLeft(projected, today time.Time) int {
	diff := Truncate(projected).Sub(Truncate(today))
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// Urgency возвращает человекочитаемую метку срочности платежа и признак
// "срочно" (3 дня и меньше, включая сегодняшний день).
func Urgency(projected, today time.Time) (string, bool, error) {
	if projected.IsZero() || today.IsZero() {
		return "", false, ErrInvalidDate
	}

	days := DaysLeft(projected, today)
	urgent := days <= 3

	switch days {
	case 0:
		return "Due Today", urgent, nil
	case 1:
		return "Tomorrow", urgent, nil
	default:
		return fmt.Sprintf("In %d days", days), urgent, nil
	}
}
