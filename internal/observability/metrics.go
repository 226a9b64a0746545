package observability

// RED metrics shared by every role.
const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
)

// Domain counters.
const (
	MOrdersRequested     MetricKey = "orders_requested_total"
	MOrdersCompleted     MetricKey = "orders_completed_total"
	MOrderPublishFailed  MetricKey = "order_event_publish_failed_total"
	MFulfillmentMessages MetricKey = "fulfillment_messages_total"
	MSagaCompensations   MetricKey = "saga_compensations_total"
	MEventRedeliveries   MetricKey = "event_redeliveries_total"
)
