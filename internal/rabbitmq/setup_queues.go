package rabbitmq

// RemindersExchange — обменник всех уведомлений приложения.
const RemindersExchange = "reminders"

// Маршрутные ключи уведомлений.
const (
	RoutingKeyRenewal = "renewal"
	RoutingKeyTier    = "tier"
)

// Имена очередей напоминаний.
const (
	QueueRenewalReminders = "reminders.renewal"
	QueueTierReminders    = "reminders.tier"
)

// QueueConfig описывает очередь и её маршрутный ключ.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetReminderQueues возвращает очереди напоминаний.
func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueRenewalReminders, RoutingKey: RoutingKeyRenewal},
		{QueueName: QueueTierReminders, RoutingKey: RoutingKeyTier},
	}
}
