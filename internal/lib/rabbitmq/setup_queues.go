package rabbitmq

// BillingExchange — exchange для событий биллинга.
const BillingExchange = "billing"

// Маршрутные ключи событий платёжного реестра.
const (
	RoutingKeyPaymentCreated = "payment.created"
	RoutingKeyPaymentPaid    = "payment.paid"
	RoutingKeyPaymentOverdue = "payment.overdue"
)

// QueueConfig описывает очередь и её маршрутный ключ.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди, потребляемые воркерами уведомлений.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.payment.created", RoutingKey: RoutingKeyPaymentCreated},
		{QueueName: "billing.payment.paid", RoutingKey: RoutingKeyPaymentPaid},
		{QueueName: "billing.payment.overdue", RoutingKey: RoutingKeyPaymentOverdue},
	}
}
