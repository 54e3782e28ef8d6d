// Package models содержит доменные структуры приложения: подписки,
// пользователей и тарифы, а также вспомогательные типы для приёма
// данных из JSON-запросов до их валидации.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы подписки.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Subscription представляет основную модель подписки,
// используемую в бизнес-логике и хранилище.
// AnchorDate — изначально зафиксированная дата продления, она может
// лежать в прошлом; актуальная дата платежа вычисляется проекцией
// через lib/datecycle и в базе не хранится.
type Subscription struct {
	ID         int             // Уникальный идентификатор записи
	UserUID    string          // UID владельца
	Username   string          // Имя пользователя-владельца
	Name       string          // Название сервиса подписки
	Cost       decimal.Decimal // Стоимость за один цикл, >= 0
	Currency   string          // Код валюты, например USD
	Frequency  string          // Периодичность: monthly или yearly
	Category   string          // Категория, может быть пустой или "Other"
	AnchorDate time.Time       // Якорная дата продления
	Status     string          // active или cancelled
	Locked     bool            // Флаг блокировки по лимиту тарифа
	IsTrial    bool            // Признак пробного периода
	SharedWith int             // Между сколькими людьми делится стоимость, >= 1
	CreatedAt  time.Time       // Время создания записи
}

// IsActive сообщает, участвует ли подписка в подсчёте лимита,
// прогнозах и оценке здоровья портфеля.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// DummySubscription используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Subscription.
// Дата приходит строкой в формате 02-01-2006, чтобы её можно было
// валидировать и парсить вручную.
type DummySubscription struct {
	Name       string `json:"name" validate:"required"`                         // Название сервиса
	Cost       string `json:"cost" validate:"required"`                         // Стоимость, неотрицательное число строкой
	Currency   string `json:"currency" validate:"required,len=3,alpha"`         // Код валюты
	Frequency  string `json:"frequency,omitempty" validate:"omitempty"`         // monthly или yearly, по умолчанию monthly
	Category   string `json:"category,omitempty" validate:"omitempty"`          // Категория
	AnchorDate string `json:"anchor_date" validate:"required"`                  // Дата продления в формате 02-01-2006
	IsTrial    bool   `json:"is_trial,omitempty"`                               // Признак пробного периода
	SharedWith int    `json:"shared_with,omitempty" validate:"omitempty,gte=1"` // Количество соплательщиков
}

// ReminderInfo — данные напоминания о предстоящем списании,
// передаются через RabbitMQ от планировщика к отправителю писем.
type ReminderInfo struct {
	Email       string          `json:"email"`
	Username    string          `json:"username"`
	ServiceName string          `json:"service_name"`
	RenewalDate time.Time       `json:"renewal_date"`
	Cost        decimal.Decimal `json:"cost"`
	Currency    string          `json:"currency"`
}
