package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Chain access errors
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeUnknownNetwork           Code = "UNKNOWN_NETWORK"
	CodeInvalidAddress           Code = "INVALID_ADDRESS"
	CodeInvalidPrivateKey        Code = "INVALID_PRIVATE_KEY"
)

// Contract binding errors
const (
	CodeABIResolutionFailed        Code = "ABI_RESOLUTION_FAILED"
	CodeExplorerAPIError           Code = "EXPLORER_API_ERROR"
	CodeContractNotInitialized     Code = "CONTRACT_NOT_INITIALIZED"
	CodeContractAlreadyInitialized Code = "CONTRACT_ALREADY_INITIALIZED"
	CodeMethodInvocationFailed     Code = "METHOD_INVOCATION_FAILED"
)

// Transaction errors
const (
	CodeNoSigningIdentity    Code = "NO_SIGNING_IDENTITY"
	CodeTxSubmissionFailed   Code = "TX_SUBMISSION_FAILED"
	CodeTxConfirmationFailed Code = "TX_CONFIRMATION_FAILED"
	CodeGasEstimationFailed  Code = "GAS_ESTIMATION_FAILED"
)

// Event errors
const (
	CodeUnknownEvent         Code = "UNKNOWN_EVENT"
	CodeEventQueryFailed     Code = "EVENT_QUERY_FAILED"
	CodeEventSubscribeFailed Code = "EVENT_SUBSCRIBE_FAILED"
	CodeRegistryClosed       Code = "REGISTRY_CLOSED"
)

// Pricing errors
const (
	CodePriceUnavailable  Code = "PRICE_UNAVAILABLE"
	CodeFeedNotConfigured Code = "FEED_NOT_CONFIGURED"
	CodePoolNotFound      Code = "POOL_NOT_FOUND"
	CodeStaleFeed         Code = "STALE_FEED"
	CodeBinanceAPIError   Code = "BINANCE_API_ERROR"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
