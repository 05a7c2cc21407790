package rabbitmq

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// EventPublisher публикует события платёжного реестра в exchange "billing".
type EventPublisher struct {
	ch *amqp.Channel
}

// NewEventPublisher создает публикатор событий поверх открытого канала.
func NewEventPublisher(ch *amqp.Channel) *EventPublisher {
	return &EventPublisher{ch: ch}
}

// PaymentCreated публикует событие о созданной записи реестра.
func (p *EventPublisher) PaymentCreated(event models.PaymentEvent) error {
	return PublishMessage(p.ch, BillingExchange, RoutingKeyPaymentCreated, event)
}

// PaymentPaid публикует событие об оплате записи реестра.
func (p *EventPublisher) PaymentPaid(event models.PaymentEvent) error {
	return PublishMessage(p.ch, BillingExchange, RoutingKeyPaymentPaid, event)
}

// PaymentOverdue публикует событие о просрочке записи реестра.
func (p *EventPublisher) PaymentOverdue(event models.PaymentEvent) error {
	return PublishMessage(p.ch, BillingExchange, RoutingKeyPaymentOverdue, event)
}
