// Package currency отвечает за конвертацию и форматирование денежных сумм.
// Источник курсов — внешний коллаборатор: по умолчанию используется
// статическая таблица, но через интерфейс RateSource можно подключить
// любой другой поставщик. Вся арифметика ведётся на decimal.Decimal,
// округление до двух знаков выполняется только на границах сравнения
// и отображения, чтобы ошибка не накапливалась при суммировании.
package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency возвращается при неизвестном коде валюты.
// Конвертация никогда молча не возвращает ноль или курс 1:1 —
// решение о фолбэке принимает вызывающий.
var ErrUnknownCurrency = errors.New("unknown currency code")

// RateSource описывает поставщика обменных курсов.
type RateSource interface {
	// Rate возвращает множитель from -> to.
	Rate(from, to string) (decimal.Decimal, error)
}

// StaticRates — статическая таблица курсов относительно USD.
type StaticRates struct {
	perUSD map[string]decimal.Decimal
}

// NewStaticRates создает таблицу курсов по умолчанию.
// Значения заданы как стоимость одного USD в соответствующей валюте.
func NewStaticRates() *StaticRates {
	return &StaticRates{perUSD: map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.92"),
		"GBP": decimal.RequireFromString("0.79"),
		"RUB": decimal.RequireFromString("92.50"),
		"JPY": decimal.RequireFromString("149.80"),
		"CAD": decimal.RequireFromString("1.36"),
		"AUD": decimal.RequireFromString("1.52"),
		"CHF": decimal.RequireFromString("0.88"),
		"INR": decimal.RequireFromString("83.20"),
		"BRL": decimal.RequireFromString("5.05"),
	}}
}

// WithRate добавляет или заменяет курс валюты к USD.
func (s *StaticRates) WithRate(code string, perUSD decimal.Decimal) *StaticRates {
	s.perUSD[code] = perUSD
	return s
}

// Rate возвращает множитель конвертации from -> to через кросс-курс к USD.
func (s *StaticRates) Rate(from, to string) (decimal.Decimal, error) {
	fromRate, ok := s.perUSD[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := s.perUSD[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return toRate.DivRound(fromRate, 10), nil
}

// Convert переводит сумму из одной валюты в другую.
// При совпадении кодов возвращает сумму без изменений и не обращается
// к источнику курсов.
func Convert(rs RateSource, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := rs.Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Round приводит сумму к двум знакам после запятой.
// Используется на границах сравнения и отображения.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

type symbolInfo struct {
	symbol string
	suffix bool
}

var symbols = map[string]symbolInfo{
	"USD": {symbol: "$"},
	"EUR": {symbol: "€"},
	"GBP": {symbol: "£"},
	"JPY": {symbol: "¥"},
	"RUB": {symbol: " ₽", suffix: true},
	"INR": {symbol: "₹"},
	"CAD": {symbol: "CA$"},
	"AUD": {symbol: "A$"},
	"CHF": {symbol: "CHF ", suffix: false},
	"BRL": {symbol: "R$"},
}

// Format отображает сумму с ровно двумя знаками после запятой и символом
// валюты в принятой для неё позиции. Для неизвестных кодов используется
// сам код в качестве суффикса. Результат предназначен только для
// отображения, дальнейшая математика ведётся на исходных числах.
func Format(amount decimal.Decimal, code string) string {
	fixed := amount.StringFixed(2)
	info, ok := symbols[code]
	if !ok {
		return fixed + " " + code
	}
	if info.suffix {
		return fixed + info.symbol
	}
	return info.symbol + fixed
}
