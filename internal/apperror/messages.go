package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeConfigurationError: "Configuration error",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	// Chain access
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeUnknownNetwork:           "Network is not configured",
	CodeInvalidAddress:           "Invalid contract or token address",
	CodeInvalidPrivateKey:        "Invalid signing key",

	// Contract binding
	CodeABIResolutionFailed:        "Contract ABI could not be resolved",
	CodeExplorerAPIError:           "Block explorer request failed",
	CodeContractNotInitialized:     "Contract binding is not initialized",
	CodeContractAlreadyInitialized: "Contract binding is already initialized",
	CodeMethodInvocationFailed:     "Contract method invocation failed",

	// Transactions
	CodeNoSigningIdentity:    "No signing identity bound to contract",
	CodeTxSubmissionFailed:   "Transaction submission failed",
	CodeTxConfirmationFailed: "Transaction confirmation failed",
	CodeGasEstimationFailed:  "Gas estimation failed",

	// Events
	CodeUnknownEvent:         "Event is not declared in the contract ABI",
	CodeEventQueryFailed:     "Historical event query failed",
	CodeEventSubscribeFailed: "Event subscription failed",
	CodeRegistryClosed:       "Event registry is disconnected",

	// Pricing
	CodePriceUnavailable:  "Token price unavailable",
	CodeFeedNotConfigured: "No reference price feed configured",
	CodePoolNotFound:      "Liquidity pool not found",
	CodeStaleFeed:         "Reference price feed is stale",
	CodeBinanceAPIError:   "Binance API error",

	CodeCircuitOpen: "Circuit breaker is open",
}
