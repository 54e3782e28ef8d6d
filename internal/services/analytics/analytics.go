// Package analytics собирает отчётные представления портфеля подписок:
// таймлайн предстоящих списаний, оценку здоровья и месячную сводку.
// Сервис только читает данные и комбинирует чистые расчёты из
// lib/datecycle, lib/currency, services/forecast и services/health.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remindmybill/remindmybill/internal/lib/currency"
	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/services/forecast"
	"github.com/remindmybill/remindmybill/internal/services/health"
)

// Repository определяет доступ к данным, нужный аналитике.
type Repository interface {
	ListActiveEntries(ctx context.Context, userUID string) ([]*models.Subscription, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// HealthReport — оценка здоровья портфеля с меткой.
type HealthReport struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// Summary — месячная сводка трат для дуги и индикатора скорости.
type Summary struct {
	MonthTotal     decimal.Decimal   `json:"month_total"`
	MonthFormatted string            `json:"month_formatted"`
	Currency       string            `json:"currency"`
	Velocity       forecast.Velocity `json:"velocity"`
	Arc            forecast.Arc      `json:"arc"`
}

// Service реализует аналитические операции.
type Service struct {
	repo       Repository
	aggregator *forecast.Aggregator
	rates      currency.RateSource
	log        *slog.Logger
}

// New создает аналитический сервис.
func New(repo Repository, aggregator *forecast.Aggregator, rates currency.RateSource, log *slog.Logger) *Service {
	return &Service{repo: repo, aggregator: aggregator, rates: rates, log: log}
}

// Timeline строит корзины предстоящих списаний в валюте пользователя.
func (s *Service) Timeline(ctx context.Context, username, monthFilter string) ([]forecast.Bucket, error) {
	const op = "analytics.Timeline"

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.repo.ListActiveEntries(ctx, user.UID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.aggregator.BuildTimeline(subs, user.Currency, monthFilter, time.Now()), nil
}

// Health считает оценку здоровья портфеля пользователя.
func (s *Service) Health(ctx context.Context, username string) (HealthReport, error) {
	const op = "analytics.Health"

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return HealthReport{}, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.repo.ListActiveEntries(ctx, user.UID)
	if err != nil {
		return HealthReport{}, fmt.Errorf("%s: %w", op, err)
	}

	score := health.Score(subs, time.Now())
	return HealthReport{Score: score, Label: health.Label(score)}, nil
}

// MonthlySummary считает суммарные ожидаемые траты текущего месяца,
// сравнивает их с прошлым месяцем и собирает дугу прогресса. Оплаченной
// считается часть подписок, чья спроецированная дата уже прошла в этом
// месяце относительно "сегодня".
func (s *Service) MonthlySummary(ctx context.Context, username string) (Summary, error) {
	const op = "analytics.MonthlySummary"

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.repo.ListActiveEntries(ctx, user.UID)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	total, paid := s.monthTotals(subs, user.Currency, now)
	previous := s.monthlyRunRate(subs, user.Currency, datecycle.PreviousMonth(now))
	current := s.monthlyRunRate(subs, user.Currency, now)

	return Summary{
		MonthTotal:     currency.Round(total),
		MonthFormatted: currency.Format(total, user.Currency),
		Currency:       user.Currency,
		Velocity:       forecast.SpendingVelocity(current, previous),
		Arc:            forecast.ForecastArc(paid, total),
	}, nil
}

// monthTotals возвращает ожидаемый итог текущего календарного месяца и
// уже оплаченную его часть. Месячные подписки попадают в итог целиком,
// годовые — только если их проекция выпадает на этот месяц.
func (s *Service) monthTotals(subs []*models.Subscription, userCurrency string, now time.Time) (total, paid decimal.Decimal) {
	today := datecycle.Truncate(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	total, paid = decimal.Zero, decimal.Zero
	for _, sub := range subs {
		if !sub.IsActive() || sub.SharedWith < 1 {
			continue
		}
		// проекция от начала месяца, чтобы увидеть и уже прошедшие списания
		occurrence, err := datecycle.NextOccurrence(sub.AnchorDate, sub.Frequency, monthStart)
		if err != nil || !occurrence.Before(monthEnd) {
			continue
		}
		share, err := s.convertedShare(sub, userCurrency)
		if err != nil {
			continue
		}
		total = total.Add(share)
		if occurrence.Before(today) {
			paid = paid.Add(share)
		}
	}
	return total, paid
}

// monthlyRunRate — траты месяца, накопленные к тому же дню месяца moment.
func (s *Service) monthlyRunRate(subs []*models.Subscription, userCurrency string, moment time.Time) decimal.Decimal {
	monthStart := time.Date(moment.Year(), moment.Month(), 1, 0, 0, 0, 0, moment.Location())
	cutoff := datecycle.Truncate(moment)

	run := decimal.Zero
	for _, sub := range subs {
		if !sub.IsActive() || sub.SharedWith < 1 {
			continue
		}
		occurrence, err := datecycle.NextOccurrence(sub.AnchorDate, sub.Frequency, monthStart)
		if err != nil || occurrence.After(cutoff) {
			continue
		}
		share, err := s.convertedShare(sub, userCurrency)
		if err != nil {
			continue
		}
		run = run.Add(share)
	}
	return run
}

func (s *Service) convertedShare(sub *models.Subscription, userCurrency string) (decimal.Decimal, error) {
	converted, err := currency.Convert(s.rates, sub.Cost, sub.Currency, userCurrency)
	if err != nil {
		s.log.Warn("failed to convert cost for summary",
			slog.Int("subscription_id", sub.ID), sl.Err(err))
		return decimal.Zero, err
	}
	return converted.DivRound(decimal.NewFromInt(int64(sub.SharedWith)), 10), nil
}
