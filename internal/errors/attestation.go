package errors

var (
	ErrNonFinite = &DomainError{
		Code:    "NON_FINITE",
		Message: "non-integer or non-finite number in canonical document",
	}
	ErrPrecision = &DomainError{
		Code:    "PRECISION",
		Message: "value does not fit the declared precision",
	}
	ErrSchema = &DomainError{
		Code:    "SCHEMA_VIOLATION",
		Message: "attestation does not conform to its schema",
	}
	ErrUnsupportedSchemaVersion = &DomainError{
		Code:    "UNSUPPORTED_SCHEMA_VERSION",
		Message: "unsupported attestation schema version",
	}
	ErrMissingMerchant = &DomainError{
		Code:    "MISSING_MERCHANT",
		Message: "merchant identifier is required",
	}
	ErrMissingCurrency = &DomainError{
		Code:    "MISSING_CURRENCY",
		Message: "currency is required",
	}
)
