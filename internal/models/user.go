// Package models содержит доменную модель пользователя и тарифа.
package models

import "time"

// Названия тарифов.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// Лимиты одновременно разблокированных активных подписок по тарифам.
// Pro-тариф формально ограничен большим конечным числом, чтобы
// сравнение рангов оставалось единообразным.
const (
	FreeTierCap = 3
	ProTierCap  = 1000
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string     // Уникальный идентификатор пользователя
	Username     string     // Имя пользователя (уникальное)
	Email        string     // Электронная почта
	PasswordHash string     // Хэш пароля
	Role         string     // Роль: admin или user
	Tier         string     // Тариф: free или pro
	TierExpiry   *time.Time // Дата окончания оплаченного pro-тарифа, nil для free
	Currency     string     // Предпочитаемая валюта для отображения сумм
	CreatedAt    time.Time  // Дата регистрации
}

// Tier описывает тариф пользователя и вытекающий из него лимит.
type Tier struct {
	Name string // free или pro
	Cap  int    // Максимум разблокированных активных подписок
}

// TierByName возвращает тариф с лимитом по его названию.
// Неизвестные названия трактуются как free.
func TierByName(name string) Tier {
	if name == TierPro {
		return Tier{Name: TierPro, Cap: ProTierCap}
	}
	return Tier{Name: TierFree, Cap: FreeTierCap}
}
