// Package forecast строит представления предстоящих списаний: корзины
// по дням для таймлайна и графиков, скорость трат относительно прошлого
// периода и дугу "оплачено/осталось" за текущий период.
package forecast

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remindmybill/remindmybill/internal/lib/currency"
	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
)

// MaxBuckets ограничивает горизонт прогноза: datecycle возвращает только
// ближайшее вхождение каждой подписки, поэтому 30 корзин покрывают всё,
// что имеет смысл показывать.
const MaxBuckets = 30

// Направления изменения трат.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionFlat = "flat"
)

// BucketItem — вклад одной подписки в корзину дня.
type BucketItem struct {
	SubscriptionID int             `json:"subscription_id"`
	Name           string          `json:"name"`
	Cost           decimal.Decimal `json:"cost"` // Уже в валюте пользователя, поделено на соплательщиков
	UrgencyLabel   string          `json:"urgency_label"`
	Urgent         bool            `json:"urgent"`
}

// Bucket — агрегат всех списаний одного календарного дня.
type Bucket struct {
	Date      time.Time       `json:"date"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Items     []BucketItem    `json:"items"`
}

// Velocity — изменение трат относительно того же дня прошлого периода.
type Velocity struct {
	Delta      decimal.Decimal `json:"delta"`
	Percentage decimal.Decimal `json:"percentage"`
	Direction  string          `json:"direction"`
}

// Arc — прогресс оплат текущего периода.
type Arc struct {
	Remaining       decimal.Decimal `json:"remaining"`
	ProgressPercent decimal.Decimal `json:"progress_percent"`
}

// Aggregator собирает прогнозы, комбинируя проекцию дат и конвертацию валют.
type Aggregator struct {
	rates currency.RateSource
	log   *slog.Logger
}

// New создает Aggregator с заданным источником курсов.
func New(rates currency.RateSource, log *slog.Logger) *Aggregator {
	return &Aggregator{rates: rates, log: log}
}

// BuildTimeline группирует предстоящие списания активных подписок по
// календарным дням. Стоимость каждой подписки конвертируется в валюту
// пользователя и делится на количество соплательщиков. Подписки, для
// которых конвертация невозможна или у которых некорректный счётчик
// соплательщиков, пропускаются с предупреждением в логе — одна плохая
// запись не должна ронять весь таймлайн.
//
// monthFilter — короткая метка месяца ("Jan", "Feb", ...); пустая строка
// отключает фильтр. Корзины отсортированы по дате по возрастанию, их не
// больше MaxBuckets.
func (a *Aggregator) BuildTimeline(subs []*models.Subscription, userCurrency, monthFilter string, now time.Time) []Bucket {
	today := datecycle.Truncate(now)
	// ключ — календарный день: time.Time в ключе сравнивает и локацию,
	// и якоря в разных часовых поясах раскололи бы один день на две корзины
	byDay := make(map[string]*Bucket)

	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if sub.SharedWith < 1 {
			a.log.Warn("subscription has invalid shared_with, skipping",
				slog.Int("subscription_id", sub.ID),
				slog.Int("shared_with", sub.SharedWith))
			continue
		}

		projected, err := datecycle.NextOccurrence(sub.AnchorDate, sub.Frequency, today)
		if err != nil {
			a.log.Warn("subscription has invalid anchor date, skipping",
				slog.Int("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		if monthFilter != "" && projected.Format("Jan") != monthFilter {
			continue
		}

		converted, err := currency.Convert(a.rates, sub.Cost, sub.Currency, userCurrency)
		if err != nil {
			a.log.Warn("failed to convert subscription cost, skipping",
				slog.Int("subscription_id", sub.ID),
				slog.String("currency", sub.Currency), sl.Err(err))
			continue
		}
		share := converted.DivRound(decimal.NewFromInt(int64(sub.SharedWith)), 10)

		label, urgent, err := datecycle.Urgency(projected, today)
		if err != nil {
			a.log.Warn("failed to classify urgency, skipping",
				slog.Int("subscription_id", sub.ID), sl.Err(err))
			continue
		}

		day := projected.Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &Bucket{Date: projected, TotalCost: decimal.Zero}
			byDay[day] = bucket
		}
		bucket.Items = append(bucket.Items, BucketItem{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Cost:           share,
			UrgencyLabel:   label,
			Urgent:         urgent,
		})
		bucket.TotalCost = bucket.TotalCost.Add(share)
	}

	buckets := make([]Bucket, 0, len(byDay))
	for _, bucket := range byDay {
		bucket.TotalCost = currency.Round(bucket.TotalCost)
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})

	if len(buckets) > MaxBuckets {
		buckets = buckets[:MaxBuckets]
	}
	return buckets
}

// velocityEpsilon — порог, ниже которого изменение считается шумом,
// чтобы направление не мигало на погрешности вычислений.
var velocityEpsilon = decimal.RequireFromString("0.01")

// SpendingVelocity сравнивает траты текущего периода с тратами на тот же
// день прошлого периода. Деление на ноль — не ошибка, а политика:
// при нулевой базе и нулевых текущих тратах процент равен нулю,
// при нулевой базе и ненулевых текущих — +100%.
func SpendingVelocity(current, previous decimal.Decimal) Velocity {
	delta := current.Sub(previous)

	var pct decimal.Decimal
	switch {
	case previous.IsZero() && current.IsZero():
		pct = decimal.Zero
	case previous.IsZero():
		pct = decimal.NewFromInt(100)
	default:
		pct = delta.DivRound(previous, 10).Mul(decimal.NewFromInt(100))
	}
	pct = currency.Round(pct)

	direction := DirectionFlat
	if pct.Abs().GreaterThan(velocityEpsilon) {
		if pct.IsPositive() {
			direction = DirectionUp
		} else {
			direction = DirectionDown
		}
	}
	return Velocity{Delta: currency.Round(delta), Percentage: pct, Direction: direction}
}

// ForecastArc считает остаток и процент прогресса оплат за период.
// Остаток намеренно не ограничивается нулём, а прогресс — сотней:
// переплата должна быть видна, а не спрятана. Нулевой ожидаемый итог
// даёт нулевой прогресс, а не ошибку деления.
func ForecastArc(paidSoFar, totalExpected decimal.Decimal) Arc {
	remaining := totalExpected.Sub(paidSoFar)

	progress := decimal.Zero
	if !totalExpected.IsZero() {
		progress = paidSoFar.DivRound(totalExpected, 10).Mul(decimal.NewFromInt(100))
	}
	return Arc{
		Remaining:       currency.Round(remaining),
		ProgressPercent: currency.Round(progress),
	}
}
