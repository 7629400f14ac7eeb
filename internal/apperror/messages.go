package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeUnknownVenue:          "Venue is not configured",
	CodeVenueAPIError:         "Venue API returned an error",
	CodeVenueConnectionFailed: "Failed to reach venue",
	CodeMarketDataFetchFailed: "Failed to fetch market data",
	CodeStaleMarketData:       "Market data is stale",
	CodeInvalidTicker:         "Invalid ticker data",
	CodeInvalidOrderbook:      "Invalid orderbook data",
	CodeUnsupportedSymbol:     "Symbol not supported by venue",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeInvalidStatusTransition: "Invalid opportunity status transition",
	CodeOpportunityExpired:      "Opportunity expired",
	CodeRiskRejected:            "Opportunity rejected by risk gate",
	CodeInvalidTradeSize:        "Invalid trade size",
	CodeInsufficientLiquidity:   "Insufficient liquidity for trade size",
	CodeInsufficientBalance:     "Insufficient balance",
	CodeSpreadDecayed:           "Spread decayed before execution",
	CodeExecutionFailed:         "Execution failed",
	CodeLockHeld:                "Opportunity lock held by another instance",
	CodeLockFailed:              "Failed to acquire opportunity lock",

	CodeCircuitOpen: "Circuit breaker is open",
}
