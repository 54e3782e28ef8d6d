// Package paymentprovider содержит HTTP-клиент платёжного провайдера
// и типы его API. Сам провайдер — внешний коллаборатор: здесь только
// узкий клиент для создания платежа за pro-тариф и типы вебхуков.
package paymentprovider

// CreatePaymentRequest — запрос на создание платежа за pro-тариф.
type CreatePaymentRequest struct {
	Amount      Amount   `json:"amount"`
	Description string   `json:"description"`
	Metadata    Metadata `json:"metadata"`
	ReturnURL   string   `json:"return_url,omitempty"`
}

// Amount — сумма платежа в формате провайдера.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Metadata — служебные данные, возвращаемые провайдером в вебхуке.
type Metadata struct {
	UserUID string `json:"user_uid"`
}

// CreatePaymentResponse — ответ провайдера на создание платежа.
type CreatePaymentResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
}

// WebhookEvent — событие, доставляемое провайдером на вебхук.
type WebhookEvent struct {
	Event  string `json:"event"` // payment.succeeded, payment.canceled
	Object struct {
		ID       string   `json:"id"`
		Status   string   `json:"status"`
		Amount   Amount   `json:"amount"`
		Metadata Metadata `json:"metadata"`
	} `json:"object"`
}

// События вебхука, которые обрабатывает сервис.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)
