package errors

var (
	ErrPaginationLoop = &DomainError{
		Code:    "PAGINATION_LOOP",
		Message: "provider repeated a continuation token",
	}
	ErrPageLimit = &DomainError{
		Code:    "PAGE_LIMIT",
		Message: "pagination stopped at the page limit",
	}
	ErrMissingCredential = &DomainError{
		Code:    "MISSING_CREDENTIAL",
		Message: "provider credential is missing",
	}
	ErrMissingParam = &DomainError{
		Code:    "MISSING_PARAM",
		Message: "provider identifier is missing",
	}
	ErrUnknownProvider = &DomainError{
		Code:    "UNKNOWN_PROVIDER",
		Message: "unknown provider",
	}
	ErrMalformedRecord = &DomainError{
		Code:    "MALFORMED_RECORD",
		Message: "malformed provider record",
	}
	ErrMalformedPayload = &DomainError{
		Code:    "MALFORMED_PAYLOAD",
		Message: "malformed provider payload",
	}
)
