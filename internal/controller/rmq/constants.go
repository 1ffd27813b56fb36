package rmq

const (
	traceName = "AMQP"

	exchangeKind       = "direct"
	exchangeDurable    = true
	exchangeAutoDelete = false
	exchangeInternal   = false
	exchangeNoWait     = false

	queueDurable    = true
	queueAutoDelete = false
	queueExclusive  = false
	queueNoWait     = false

	publishMandatory = false
	publishImmediate = false

	consumeAutoAck   = false
	consumeExclusive = false
	consumeNoLocal   = false
	consumeNoWait    = false

	prefetchCount = 1

	// routingKey binds the request queue to the exchange.
	routingKey = "transcode"

	headerSourceExt   = "source_ext"
	headerErrorKind   = "error_kind"
	headerErrorReason = "error_reason"
)
