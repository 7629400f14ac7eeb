package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Market data codes
const (
	CodeUnknownVenue          Code = "UNKNOWN_VENUE"
	CodeVenueAPIError         Code = "VENUE_API_ERROR"
	CodeVenueConnectionFailed Code = "VENUE_CONNECTION_FAILED"
	CodeMarketDataFetchFailed Code = "MARKET_DATA_FETCH_FAILED"
	CodeStaleMarketData       Code = "STALE_MARKET_DATA"
	CodeInvalidTicker         Code = "INVALID_TICKER"
	CodeInvalidOrderbook      Code = "INVALID_ORDERBOOK"
	CodeUnsupportedSymbol     Code = "UNSUPPORTED_SYMBOL"

	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
)

// Pipeline codes
const (
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeOpportunityExpired      Code = "OPPORTUNITY_EXPIRED"
	CodeRiskRejected            Code = "RISK_REJECTED"
	CodeInvalidTradeSize        Code = "INVALID_TRADE_SIZE"
	CodeInsufficientLiquidity   Code = "INSUFFICIENT_LIQUIDITY"
	CodeInsufficientBalance     Code = "INSUFFICIENT_BALANCE"
	CodeSpreadDecayed           Code = "SPREAD_DECAYED"
	CodeExecutionFailed         Code = "EXECUTION_FAILED"
	CodeLockHeld                Code = "LOCK_HELD"
	CodeLockFailed              Code = "LOCK_FAILED"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
